package model

import "testing"

func TestChallenge_Desensitize(t *testing.T) {
	c := Challenge{
		ID:     "chal-1",
		Title:  "pwn me",
		Script: "function check() {}",
		Env:    &ChallengeEnv{Image: "secret/image"},
		Flags:  []Flag{{Value: "flag{secret}"}},
	}

	d := c.Desensitize()

	if d.Flags != nil {
		t.Error("Desensitize should strip Flags")
	}
	if d.Script != "" {
		t.Error("Desensitize should strip Script")
	}
	if d.Env != nil {
		t.Error("Desensitize should strip Env")
	}
	if d.Title != c.Title || d.ID != c.ID {
		t.Error("Desensitize should preserve public fields")
	}
	if c.Flags == nil {
		t.Error("Desensitize must not mutate the original challenge")
	}
}

func TestChallenge_PrimaryFlag(t *testing.T) {
	c := Challenge{Flags: []Flag{
		{Value: "flag{first}"},
		{Value: "flag{second}"},
	}}

	flag, ok := c.PrimaryFlag()
	if !ok || flag.Value != "flag{first}" {
		t.Errorf("PrimaryFlag() = %+v, %v; want first flag", flag, ok)
	}

	empty := Challenge{}
	if _, ok := empty.PrimaryFlag(); ok {
		t.Error("PrimaryFlag() on a challenge with no flags should report false")
	}
}
