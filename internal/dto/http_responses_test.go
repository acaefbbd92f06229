package dto

import "testing"

func TestLegacyParticipantStatus(t *testing.T) {
	tests := []struct {
		stored string
		want   string
	}{
		{"confirmed", "approved"},
		{"pending", "pending_review"},
		{"cancelled", "rejected"},
		{"weird", "weird"},
	}

	for _, tt := range tests {
		if got := LegacyParticipantStatus(tt.stored); got != tt.want {
			t.Errorf("LegacyParticipantStatus(%q) = %q, want %q", tt.stored, got, tt.want)
		}
	}
}
