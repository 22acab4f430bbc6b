package model

import "testing"

func TestSubmission_InGame(t *testing.T) {
	teamID, gameID := int64(1), int64(2)

	playground := Submission{UserID: 5}
	if playground.InGame() {
		t.Error("submission with no team/game should not be InGame")
	}

	inGame := Submission{UserID: 5, TeamID: &teamID, GameID: &gameID}
	if !inGame.InGame() {
		t.Error("submission with team and game should be InGame")
	}
}

func TestSubmission_OperatorID(t *testing.T) {
	teamID := int64(42)

	playground := Submission{UserID: 7}
	if got := playground.OperatorID(); got != 7 {
		t.Errorf("playground OperatorID() = %d, want 7", got)
	}

	inGame := Submission{UserID: 7, TeamID: &teamID}
	if got := inGame.OperatorID(); got != 42 {
		t.Errorf("in-game OperatorID() = %d, want 42", got)
	}
}

func TestSubmissionStatus_String(t *testing.T) {
	tests := map[SubmissionStatus]string{
		StatusPending:   "Pending",
		StatusCorrect:   "Correct",
		StatusIncorrect: "Incorrect",
		StatusCheat:     "Cheat",
		StatusInvalid:   "Invalid",
		StatusDuplicate: "Duplicate",
		StatusExpired:   "Expired",
	}
	for status, want := range tests {
		if got := status.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", status, got, want)
		}
	}
}
