package queue

import (
	"errors"
	"testing"
)

func TestIsBusyGroup(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("BUSYGROUP Consumer Group name already exists"), true},
		{errors.New("NOGROUP No such key"), false},
		{errors.New("short"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := isBusyGroup(tt.err); got != tt.want {
			t.Errorf("isBusyGroup(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestStreamKey(t *testing.T) {
	if got := streamKey(TopicChecker); got != "cdsctf:queue:checker" {
		t.Errorf("streamKey(checker) = %q", got)
	}
}

func TestDefaultReclaimCadence(t *testing.T) {
	if DefaultReclaimMinIdle <= 0 || DefaultReclaimInterval <= 0 {
		t.Error("reclaim cadence constants must be positive")
	}
	if DefaultReclaimMinIdle < DefaultReclaimInterval {
		t.Error("minIdle shorter than the scan interval would reclaim messages still being actively handled")
	}
}
