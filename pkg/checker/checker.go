// Package checker implements the submission-checking ABI on top of the
// sandboxed scripting engine: it classifies a submission's content as
// Correct, Incorrect, or Cheat, falling back to static flag comparison when
// a challenge carries no script.
package checker

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/cdsctf/cdsctfd/pkg/engine"
	"github.com/cdsctf/cdsctfd/pkg/model"
)

// VerdictKind is the outcome of a single check.
type VerdictKind string

const (
	VerdictCorrect   VerdictKind = "Correct"
	VerdictIncorrect VerdictKind = "Incorrect"
	VerdictCheat     VerdictKind = "Cheat"
)

// Verdict is the result of Check. PeerTeamID is only meaningful when Kind
// is VerdictCheat; zero means "no identifiable peer" (e.g. a static banned
// flag caught an insider leak rather than cross-team collusion); the
// adjudicator finds no team for a zero peer and records such a submission
// as Incorrect without banning anyone.
type Verdict struct {
	Kind       VerdictKind
	PeerTeamID int64
}

// Checker wraps the scripting engine with the module set the production
// adjudicator is allowed to expose to untrusted challenge scripts: crypto,
// json, http (read-only), and toml — never process.
type Checker struct {
	eng *engine.Engine
	ctx *engine.Context
}

// New creates a Checker backed by eng.
func New(eng *engine.Engine) *Checker {
	return &Checker{
		eng: eng,
		ctx: engine.PrepareContext(engine.ModuleCrypto, engine.ModuleJSON, engine.ModuleHTTP, engine.ModuleTOML),
	}
}

// Check classifies a submission's content against challenge, invoking the
// challenge's scoring script when present and falling back to static flag
// comparison otherwise.
func (c *Checker) Check(ctx context.Context, challenge model.Challenge, operatorID int64, content string) (Verdict, error) {
	if challenge.Script == "" {
		return checkStaticFlags(challenge, content), nil
	}

	if err := c.eng.Preload(c.ctx, challenge.ID, challenge.Script, &challenge.UpdatedAt); err != nil {
		return Verdict{}, fmt.Errorf("preloading challenge script: %w", err)
	}

	val, err := c.eng.Execute(ctx, challenge.ID, "check", operatorID, content)
	if err != nil {
		return Verdict{}, err
	}
	return parseVerdict(val)
}

// Environ returns the environment variables a challenge script wants
// injected into a spawned environment for operatorID.
func (c *Checker) Environ(ctx context.Context, challenge model.Challenge, operatorID int64) (map[string]string, error) {
	if challenge.Script == "" {
		return nil, nil
	}

	if err := c.eng.Preload(c.ctx, challenge.ID, challenge.Script, &challenge.UpdatedAt); err != nil {
		return nil, fmt.Errorf("preloading challenge script: %w", err)
	}

	val, err := c.eng.Execute(ctx, challenge.ID, "environ", operatorID)
	if err != nil {
		return nil, err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}

	exported, ok := val.Export().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("environ() returned non-object value")
	}
	out := make(map[string]string, len(exported))
	for k, v := range exported {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

// checkStaticFlags matches content against a challenge's declared flags
// when no scoring script is present.
func checkStaticFlags(challenge model.Challenge, content string) Verdict {
	for _, f := range challenge.Flags {
		if f.Value != content {
			continue
		}
		if f.Banned {
			return Verdict{Kind: VerdictCheat}
		}
		return Verdict{Kind: VerdictCorrect}
	}
	return Verdict{Kind: VerdictIncorrect}
}

// parseVerdict maps a script's check() return value onto a Verdict. The
// ABI convention: a boolean is correctness; an object carrying a numeric
// "cheat" property signals Cheat(peer_team_id).
func parseVerdict(val goja.Value) (Verdict, error) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return Verdict{Kind: VerdictIncorrect}, nil
	}

	switch v := val.Export().(type) {
	case bool:
		if v {
			return Verdict{Kind: VerdictCorrect}, nil
		}
		return Verdict{Kind: VerdictIncorrect}, nil
	case map[string]interface{}:
		peer, ok := v["cheat"]
		if !ok {
			return Verdict{}, fmt.Errorf("unrecognized check() return object: %v", v)
		}
		peerID, err := toInt64(peer)
		if err != nil {
			return Verdict{}, fmt.Errorf("parsing cheat peer team id: %w", err)
		}
		return Verdict{Kind: VerdictCheat, PeerTeamID: peerID}, nil
	default:
		return Verdict{}, fmt.Errorf("unrecognized check() return value: %v", v)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected numeric team id, got %T", v)
	}
}
