package model

import (
	"testing"
	"time"
)

func TestEnvironment_ExpiresAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env := Environment{StartedAt: start, Duration: 10 * time.Minute, Renew: 0}

	if got := env.ExpiresAt(); !got.Equal(start.Add(10 * time.Minute)) {
		t.Errorf("ExpiresAt() with no renewals = %v, want %v", got, start.Add(10*time.Minute))
	}

	env.Renew = 2
	if got := env.ExpiresAt(); !got.Equal(start.Add(30 * time.Minute)) {
		t.Errorf("ExpiresAt() with 2 renewals = %v, want %v", got, start.Add(30*time.Minute))
	}
}

func TestEnvironment_IsLive(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env := Environment{StartedAt: start, Duration: 10 * time.Minute}

	if !env.IsLive(start.Add(5 * time.Minute)) {
		t.Error("environment should be live before its expiry")
	}
	if env.IsLive(start.Add(11 * time.Minute)) {
		t.Error("environment should not be live after its expiry")
	}
}

func TestEnvironment_IsLive_TerminalPhase(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env := Environment{StartedAt: start, Duration: time.Hour, Status: "Succeeded"}

	if env.IsLive(start.Add(time.Minute)) {
		t.Error("a terminal-phase environment should not be live even before its time budget elapses")
	}
}

func TestMaxRenewals(t *testing.T) {
	if MaxRenewals != 3 {
		t.Errorf("MaxRenewals = %d, want 3", MaxRenewals)
	}
}
