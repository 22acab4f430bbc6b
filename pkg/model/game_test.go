package model

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return tm
}

func TestGame_IsFrozen_NoTimeslots(t *testing.T) {
	g := Game{
		StartedAt: mustParse(t, "2026-01-01T00:00:00Z"),
		FrozenAt:  mustParse(t, "2026-01-02T00:00:00Z"),
		EndedAt:   mustParse(t, "2026-01-03T00:00:00Z"),
	}

	if g.IsFrozen(mustParse(t, "2026-01-01T12:00:00Z")) {
		t.Error("game should not be frozen before FrozenAt")
	}
	if !g.IsFrozen(mustParse(t, "2026-01-02T01:00:00Z")) {
		t.Error("game should be frozen after FrozenAt")
	}
}

func TestGame_IsFrozen_OutsideAllTimeslots(t *testing.T) {
	g := Game{
		FrozenAt: mustParse(t, "2026-01-10T00:00:00Z"),
		EndedAt:  mustParse(t, "2026-01-10T00:00:00Z"),
		Timeslots: []Timeslot{
			{StartedAt: mustParse(t, "2026-01-01T09:00:00Z"), EndedAt: mustParse(t, "2026-01-01T17:00:00Z")},
			{StartedAt: mustParse(t, "2026-01-02T09:00:00Z"), EndedAt: mustParse(t, "2026-01-02T17:00:00Z")},
		},
	}

	if g.IsFrozen(mustParse(t, "2026-01-01T12:00:00Z")) {
		t.Error("a time inside a timeslot should not be frozen")
	}
	if !g.IsFrozen(mustParse(t, "2026-01-01T20:00:00Z")) {
		t.Error("a time between timeslots should be frozen")
	}
	if g.IsFrozen(mustParse(t, "2026-01-02T09:00:00Z")) {
		t.Error("a timeslot boundary start should not be frozen")
	}
}
