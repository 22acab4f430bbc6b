package cluster

import (
	"strings"
	"testing"

	"github.com/cdsctf/cdsctfd/pkg/model"
)

func TestResolveFlag_Static(t *testing.T) {
	challenge := model.Challenge{
		Flags: []model.Flag{{Value: "flag{static}", Type: model.FlagStatic}},
	}

	flag, value, ok := resolveFlag(challenge)
	if !ok || flag.Type != model.FlagStatic || value != "flag{static}" {
		t.Errorf("resolveFlag(static) = %+v, %q, %v", flag, value, ok)
	}
}

func TestResolveFlag_DynamicSubstitutesUUID(t *testing.T) {
	challenge := model.Challenge{
		Flags: []model.Flag{{Value: "flag{[UUID]}", Type: model.FlagDynamic}},
	}

	_, value, ok := resolveFlag(challenge)
	if !ok {
		t.Fatal("resolveFlag(dynamic) should report a flag present")
	}
	if strings.Contains(strings.ToUpper(value), "[UUID]") {
		t.Errorf("resolveFlag(dynamic) left the token unsubstituted: %q", value)
	}
	if !strings.HasPrefix(value, "flag{") || !strings.HasSuffix(value, "}") {
		t.Errorf("resolveFlag(dynamic) = %q, want the flag{...} wrapper preserved", value)
	}
}

func TestResolveFlag_DynamicGeneratesDistinctValues(t *testing.T) {
	challenge := model.Challenge{
		Flags: []model.Flag{{Value: "flag{[UUID]}", Type: model.FlagDynamic}},
	}

	_, a, _ := resolveFlag(challenge)
	_, b, _ := resolveFlag(challenge)
	if a == b {
		t.Error("two resolutions of a dynamic flag should not collide")
	}
}

func TestResolveFlag_NoFlags(t *testing.T) {
	flag, value, ok := resolveFlag(model.Challenge{})
	if ok || flag != (model.Flag{}) || value != "" {
		t.Errorf("resolveFlag on a challenge with no flags should report absent, got %+v, %q, %v", flag, value, ok)
	}
}

func TestLabelsFor(t *testing.T) {
	labels := (&Manager{}).labelsFor("res-1", 10, 20, 30, "chal-1")

	if labels[labelResourceID] != "res-1" {
		t.Errorf("labelResourceID = %q, want res-1", labels[labelResourceID])
	}
	if labels[labelUserID] != "10" || labels[labelTeamID] != "20" || labels[labelGameID] != "30" {
		t.Errorf("owner labels = %+v, want 10/20/30", labels)
	}
	if labels[labelChallengeID] != "chal-1" {
		t.Errorf("labelChallengeID = %q, want chal-1", labels[labelChallengeID])
	}
	if labels[labelApp] != appValue {
		t.Errorf("labelApp = %q, want %q", labels[labelApp], appValue)
	}
}

func TestPodAndServiceName(t *testing.T) {
	if podName("abc") != serviceName("abc") {
		t.Error("pod and service names should match so the service selector resolves by resource id alone")
	}
}

func TestFormatAndParseNats_RoundTrip(t *testing.T) {
	nats := map[int]int{80: 30080, 443: 30443}

	formatted := formatNats(nats)
	if formatted != "80=30080,443=30443" {
		t.Errorf("formatNats() = %q, want deterministic sorted pairs", formatted)
	}

	parsed := parseNats(formatted)
	if len(parsed) != len(nats) {
		t.Fatalf("parseNats() round-trip length = %d, want %d", len(parsed), len(nats))
	}
	for k, v := range nats {
		if parsed[k] != v {
			t.Errorf("parseNats()[%d] = %d, want %d", k, parsed[k], v)
		}
	}
}

func TestParseNats_Empty(t *testing.T) {
	parsed := parseNats("")
	if len(parsed) != 0 {
		t.Errorf("parseNats(\"\") = %+v, want empty map", parsed)
	}
}

func TestDefaultFlagEnvVarName(t *testing.T) {
	if defaultFlagEnvVarName != "FLAG" {
		t.Errorf("defaultFlagEnvVarName = %q, want FLAG", defaultFlagEnvVarName)
	}
}

func TestBuildResourceRequirements_SetsRequestsAndLimits(t *testing.T) {
	reqs, err := buildResourceRequirements("500m", 256)
	if err != nil {
		t.Fatalf("buildResourceRequirements() error = %v", err)
	}

	cpuReq, ok := reqs.Requests["cpu"]
	if !ok || cpuReq.String() != "10m" {
		t.Errorf("cpu request = %v, want 10m", cpuReq)
	}
	memReq, ok := reqs.Requests["memory"]
	if !ok || memReq.Value() != 32*1024*1024 {
		t.Errorf("memory request = %v, want 32Mi", memReq)
	}

	cpuLimit, ok := reqs.Limits["cpu"]
	if !ok || cpuLimit.String() != "500m" {
		t.Errorf("cpu limit = %v, want 500m", cpuLimit)
	}
	memLimit, ok := reqs.Limits["memory"]
	if !ok || memLimit.Value() != 256*1024*1024 {
		t.Errorf("memory limit = %v, want 256Mi", memLimit)
	}
}
