package mask

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"สมชาย ใจดี", "สมชาย *"},
		{"Freelance", "*"},
		{"", "*"},
		{"Somchai Jaidee Jr", "Somchai Jaidee *"},
		{"  spaced   out  ", "spaced *"},
	}

	for _, tt := range tests {
		if got := Name(tt.in); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
