package model

import "time"

// Environment is a logical projection of a (pod, service) pair on the
// cluster; it has no database row of its own. Everything here is parsed
// from pod labels, annotations, and container state by the Environment
// Manager at read time.
type Environment struct {
	ID          string
	UserID      int64
	TeamID      int64
	GameID      int64
	ChallengeID string
	Ports       []int
	Nats        map[int]int
	Status      string
	Reason      string
	Duration    time.Duration
	Renew       int
	StartedAt   time.Time
	PublicEntry string
}

// MaxRenewals is the inclusive upper bound on Renew.
const MaxRenewals = 3

// ExpiresAt is the instant at which the environment becomes reclaimable by
// the reaper, absent further renewal.
func (e Environment) ExpiresAt() time.Time {
	return e.StartedAt.Add(time.Duration(e.Renew+1) * e.Duration)
}

// IsTerminal reports whether the pod's phase can never become live again.
func (e Environment) IsTerminal() bool {
	switch e.Status {
	case "Succeeded", "Failed", "Unknown":
		return true
	default:
		return false
	}
}

// IsLive reports whether the environment is still within its lease at t and
// its pod phase is not terminal.
func (e Environment) IsLive(t time.Time) bool {
	return t.Before(e.ExpiresAt()) && !e.IsTerminal()
}
