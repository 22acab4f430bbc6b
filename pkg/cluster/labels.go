package cluster

const (
	// labelApp marks every pod/service this package creates, so
	// List/Delete-by-selector never touches anything outside its ownership.
	labelApp         = "cds/app"
	appValue         = "challenges"
	labelResourceID  = "cds/resource_id"
	labelUserID      = "cds/user_id"
	labelTeamID      = "cds/team_id"
	labelGameID      = "cds/game_id"
	labelChallengeID = "cds/challenge_id"

	annotationDuration  = "cds/duration"
	annotationRenew     = "cds/renew"
	annotationPorts     = "cds/ports"
	annotationNats      = "cds/nats"
	annotationFlag      = "cds/flag"
	annotationChallenge = "cds/challenge"
)
