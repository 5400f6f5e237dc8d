package domain

import "testing"

func TestJobStatusCanTransition(t *testing.T) {
	testCases := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusQueued, JobStatusProcessing, true},
		{JobStatusQueued, JobStatusFailed, true},
		{JobStatusQueued, JobStatusCompleted, false},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusQueued, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusFailed, false},
	}

	for _, tc := range testCases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestUserIDEqual(t *testing.T) {
	if !UserID("u-1").Equal(UserID(" u-1 ")) {
		t.Error("identities differing only in whitespace should match")
	}
	if UserID("u-1").Equal(UserID("u-2")) {
		t.Error("different identities should not match")
	}
	if UserID("").Equal(UserID("")) {
		t.Error("empty identities must never match")
	}
}
