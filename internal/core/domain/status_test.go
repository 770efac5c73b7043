package domain

import (
	"math"
	"testing"
)

func TestStatus_Progress(t *testing.T) {
	cases := []struct {
		status Status
		want   float64
	}{
		{StatusPaymentPending, 0.125},
		{StatusPaymentReceived, 0.25},
		{StatusInReview, 0.375},
		{StatusDocumentsIncomplete, 0.5},
		{StatusWithIRS, 0.625},
		{StatusApproved, 0.75},
		{StatusCompleted, 1},
		{StatusRejected, 1},
	}
	for _, tc := range cases {
		if got := tc.status.Progress(); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Progress(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestStatus_ProgressMatchesIndexBeforeTerminal(t *testing.T) {
	for i, s := range Lifecycle() {
		if s.Terminal() {
			continue
		}
		want := float64(i+1) / float64(len(Lifecycle()))
		if got := s.Progress(); math.Abs(got-want) > 1e-9 {
			t.Errorf("Progress(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestStatus_Unknown(t *testing.T) {
	s := Status("Archivada")
	if s.Known() {
		t.Fatalf("expected unknown status")
	}
	if s.Index() != -1 {
		t.Fatalf("expected index -1, got %d", s.Index())
	}
	if s.Progress() != 0 {
		t.Fatalf("expected 0 progress, got %v", s.Progress())
	}
}

func TestVocabulariesAreDistinct(t *testing.T) {
	// "Pendiente" is an admin value only; it has no lifecycle position.
	if Status(AdminStatusPending).Known() {
		t.Fatalf("admin status leaked into lifecycle vocabulary")
	}
	if AdminStatus(StatusCompleted).Valid() {
		t.Fatalf("lifecycle status leaked into admin vocabulary")
	}
}

func TestAdminStatus_RequiresPaymentDate(t *testing.T) {
	for _, s := range AdminStatuses() {
		if got := s.RequiresPaymentDate(); got != (s == AdminStatusPaymentScheduled) {
			t.Errorf("RequiresPaymentDate(%q) = %v", s, got)
		}
	}
}
