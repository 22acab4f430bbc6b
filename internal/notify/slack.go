// Package notify sends player-facing alerts (first blood, cheat bans) to
// Slack. It is a supplementary side channel: the adjudicator, which posts
// cheat bans, functions identically with a nil Notifier. The scoring engine
// holds no notifier, so nothing calls NotifyFirstBlood.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// SlackNotifier posts CTF events to a single Slack channel.
type SlackNotifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewSlackNotifier creates a SlackNotifier. If botToken is empty the
// notifier is disabled: every method becomes a debug-logged no-op.
func NewSlackNotifier(botToken, channel string, logger *slog.Logger) *SlackNotifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &SlackNotifier{client: client, channel: channel, logger: logger}
}

// IsEnabled reports whether the notifier has a usable client and channel.
func (n *SlackNotifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// NotifyCheatBan announces that a team (and, when identifiable, a peer
// team) has been banned for cheating on a challenge. peerTeamID of 0 means
// no peer was identified.
func (n *SlackNotifier) NotifyCheatBan(ctx context.Context, teamID, peerTeamID int64, challengeTitle string) {
	if !n.IsEnabled() {
		n.logger.Debug("slack disabled, skipping cheat-ban notification", "team_id", teamID, "challenge", challengeTitle)
		return
	}

	text := fmt.Sprintf(":no_entry: Team %d banned for cheating on %q", teamID, challengeTitle)
	if peerTeamID != 0 {
		text = fmt.Sprintf(":no_entry: Teams %d and %d banned for collusion on %q", teamID, peerTeamID, challengeTitle)
	}

	if _, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false)); err != nil {
		n.logger.Error("posting cheat-ban notification", "error", err)
	}
}

// NotifyFirstBlood announces the first correct solve of a challenge within
// a game.
func (n *SlackNotifier) NotifyFirstBlood(ctx context.Context, teamID int64, challengeTitle string) {
	if !n.IsEnabled() {
		n.logger.Debug("slack disabled, skipping first-blood notification", "team_id", teamID, "challenge", challengeTitle)
		return
	}

	text := fmt.Sprintf(":drop_of_blood: First blood on %q goes to team %d!", challengeTitle, teamID)
	if _, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false)); err != nil {
		n.logger.Error("posting first-blood notification", "error", err)
	}
}
