package checker

import (
	"context"
	"testing"

	"github.com/dop251/goja"

	"github.com/cdsctf/cdsctfd/pkg/engine"
	"github.com/cdsctf/cdsctfd/pkg/model"
)

func TestCheckStaticFlags(t *testing.T) {
	challenge := model.Challenge{
		Flags: []model.Flag{
			{Value: "flag{real}"},
			{Value: "flag{banned}", Banned: true},
		},
	}

	tests := []struct {
		content string
		want    VerdictKind
	}{
		{"flag{real}", VerdictCorrect},
		{"flag{banned}", VerdictCheat},
		{"flag{nope}", VerdictIncorrect},
	}
	for _, tt := range tests {
		got := checkStaticFlags(challenge, tt.content)
		if got.Kind != tt.want {
			t.Errorf("checkStaticFlags(%q) = %v, want %v", tt.content, got.Kind, tt.want)
		}
	}
}

func TestParseVerdict_Boolean(t *testing.T) {
	vm := goja.New()

	got, err := parseVerdict(vm.ToValue(true))
	if err != nil || got.Kind != VerdictCorrect {
		t.Errorf("parseVerdict(true) = %v, %v; want Correct", got, err)
	}

	got, err = parseVerdict(vm.ToValue(false))
	if err != nil || got.Kind != VerdictIncorrect {
		t.Errorf("parseVerdict(false) = %v, %v; want Incorrect", got, err)
	}
}

func TestParseVerdict_Cheat(t *testing.T) {
	vm := goja.New()
	val, err := vm.RunString(`({cheat: 42})`)
	if err != nil {
		t.Fatalf("building test value: %v", err)
	}

	got, err := parseVerdict(val)
	if err != nil {
		t.Fatalf("parseVerdict: %v", err)
	}
	if got.Kind != VerdictCheat || got.PeerTeamID != 42 {
		t.Errorf("parseVerdict(cheat object) = %+v, want Cheat with PeerTeamID=42", got)
	}
}

func TestParseVerdict_Undefined(t *testing.T) {
	got, err := parseVerdict(goja.Undefined())
	if err != nil || got.Kind != VerdictIncorrect {
		t.Errorf("parseVerdict(undefined) = %v, %v; want Incorrect", got, err)
	}
}

func TestChecker_Check_ScriptDriven(t *testing.T) {
	eng := engine.New()
	c := New(eng)

	challenge := model.Challenge{
		ID:     "chal-script",
		Script: `function check(operatorId, content) { if (content === "flag{win}") { return true; } return {cheat: 7}; }`,
	}

	verdict, err := c.Check(context.Background(), challenge, 1, "flag{win}")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if verdict.Kind != VerdictCorrect {
		t.Errorf("Check(flag{win}) = %v, want Correct", verdict.Kind)
	}

	verdict, err = c.Check(context.Background(), challenge, 1, "flag{leaked}")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if verdict.Kind != VerdictCheat || verdict.PeerTeamID != 7 {
		t.Errorf("Check(flag{leaked}) = %+v, want Cheat with PeerTeamID=7", verdict)
	}
}

func TestChecker_Check_StaticFallback(t *testing.T) {
	eng := engine.New()
	c := New(eng)

	challenge := model.Challenge{
		ID:    "chal-static",
		Flags: []model.Flag{{Value: "flag{static}"}},
	}

	verdict, err := c.Check(context.Background(), challenge, 1, "flag{static}")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if verdict.Kind != VerdictCorrect {
		t.Errorf("Check static flag = %v, want Correct", verdict.Kind)
	}
}
