package model

import "time"

// FlagType distinguishes a literal flag value from one templated with a
// per-environment UUID token.
type FlagType string

const (
	FlagStatic  FlagType = "Static"
	FlagDynamic FlagType = "Dynamic"
)

// DynamicToken is the literal placeholder a Dynamic flag's Value contains;
// the environment manager substitutes it (case-insensitively) with a fresh
// UUID at environment-creation time.
const DynamicToken = "[UUID]"

// Flag is one accepted answer for a challenge. A Banned flag, if submitted,
// signals the adjudicator to treat the submission as cheating rather than
// merely incorrect.
type Flag struct {
	Value      string
	Type       FlagType
	EnvVarName string
	Banned     bool
}

// ChallengeEnv is the container template a challenge spawns on demand.
type ChallengeEnv struct {
	Image           string
	Envs            map[string]string
	Ports           []int
	DurationSeconds int64
	CPULimit        string
	MemoryLimitMiB  int64
}

// Challenge is a single problem. Env is nil for a challenge with no
// spawnable environment and Script is empty for one with no dynamic scoring
// script; when Script is empty, adjudication falls back to matching Flags
// directly.
type Challenge struct {
	ID         string
	Title      string
	Category   string
	Tags       []string
	IsPublic   bool
	IsDynamic  bool
	Env        *ChallengeEnv
	Script     string
	Flags      []Flag
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Desensitize strips fields that must never reach an untrusted reader
// (flags, scoring script, container template) before serialization, e.g.
// into the cds/challenge pod annotation.
func (c Challenge) Desensitize() Challenge {
	cp := c
	cp.Flags = nil
	cp.Script = ""
	cp.Env = nil
	return cp
}

// PrimaryFlag returns the flag injected into a spawned environment, which is
// always the first declared flag.
func (c Challenge) PrimaryFlag() (Flag, bool) {
	if len(c.Flags) == 0 {
		return Flag{}, false
	}
	return c.Flags[0], true
}
