package status

import (
	"testing"
	"time"

	"eventregis/internal/model"
)

func mustTime(t *testing.T, v string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t.Fatalf("parse time %q: %v", v, err)
	}
	return ts
}

func TestIsPastEvent(t *testing.T) {
	tests := []struct {
		name      string
		beginDate string
		endDate   string
		now       string
		want      bool
	}{
		{"before begin date", "2099-01-01", "", "2026-01-01T12:00:00Z", false},
		{"on the begin day", "2020-01-01", "", "2020-01-01T23:59:58Z", false},
		{"just after end of day", "2020-01-01", "", "2020-01-02T00:00:00Z", true},
		{"end date extends the event", "2020-01-01", "2099-12-31", "2026-01-01T12:00:00Z", false},
		{"past end date", "2020-01-01", "2020-01-05", "2020-01-06T01:00:00Z", true},
		{"garbage begin date fails open", "sometime soon", "", "2026-01-01T12:00:00Z", false},
		{"garbage end date fails open", "2020-01-01", "TBA", "2026-01-01T12:00:00Z", false},
		{"empty dates fail open", "", "", "2026-01-01T12:00:00Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsPastEvent(tt.beginDate, tt.endDate, mustTime(t, tt.now))
			if got != tt.want {
				t.Errorf("IsPastEvent(%q, %q) = %v, want %v", tt.beginDate, tt.endDate, got, tt.want)
			}
		})
	}
}

func TestEffective(t *testing.T) {
	now := mustTime(t, "2026-01-01T12:00:00Z")

	tests := []struct {
		name  string
		event model.Event
		want  string
	}{
		{
			"cancelled is authoritative even when past",
			model.Event{Status: model.StatusCancelled, BeginDate: "2020-01-01"},
			model.StatusCancelled,
		},
		{
			"postponed is authoritative",
			model.Event{Status: model.StatusPostponed, BeginDate: "2020-01-01"},
			model.StatusPostponed,
		},
		{
			"closed is authoritative",
			model.Event{Status: model.StatusClosed, BeginDate: "2099-01-01"},
			model.StatusClosed,
		},
		{
			"scheduled past event displays closed",
			model.Event{Status: model.StatusScheduled, BeginDate: "2020-01-01"},
			model.StatusClosed,
		},
		{
			"open future event stays open",
			model.Event{Status: model.StatusOpen, BeginDate: "2099-01-01"},
			model.StatusOpen,
		},
		{
			"full future event stays full",
			model.Event{Status: model.StatusFull, BeginDate: "2099-01-01"},
			model.StatusFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Effective(&tt.event, now)
			if got != tt.want {
				t.Errorf("Effective() = %q, want %q", got, tt.want)
			}
			// Pure function: same input, same output.
			if again := Effective(&tt.event, now); again != got {
				t.Errorf("Effective() not idempotent: %q then %q", got, again)
			}
		})
	}
}

func TestIsRegisClosed(t *testing.T) {
	now := mustTime(t, "2026-01-01T12:00:00Z")

	tests := []struct {
		name  string
		event model.Event
		want  bool
	}{
		{
			"open with free seats",
			model.Event{Status: model.StatusOpen, BeginDate: "2099-01-01", Capacity: 10, Registered: 3},
			false,
		},
		{
			"explicit override",
			model.Event{Status: model.StatusOpen, BeginDate: "2099-01-01", Capacity: 10, Registered: 3, RegisClosed: true},
			true,
		},
		{
			"status full",
			model.Event{Status: model.StatusFull, BeginDate: "2099-01-01", Capacity: 10, Registered: 3},
			true,
		},
		{
			"capacity reached",
			model.Event{Status: model.StatusOpen, BeginDate: "2099-01-01", Capacity: 10, Registered: 10},
			true,
		},
		{
			"past event",
			model.Event{Status: model.StatusScheduled, BeginDate: "2020-01-01", Capacity: 10},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsRegisClosed(&tt.event, now)
			if got != tt.want {
				t.Errorf("IsRegisClosed() = %v, want %v", got, tt.want)
			}
		})
	}
}
