package status

import (
	"time"

	"eventregis/internal/model"
)

const dateLayout = "2006-01-02"

// IsPastEvent reports whether now is after 23:59:59 of the event's last day
// (end date when present, begin date otherwise). Unparsable dates never mark
// an event past, so bad data cannot block registration on its own.
func IsPastEvent(beginDate, endDate string, now time.Time) bool {
	last := endDate
	if last == "" {
		last = beginDate
	}
	d, err := time.ParseInLocation(dateLayout, last, now.Location())
	if err != nil {
		return false
	}
	endOfDay := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, now.Location())
	return now.After(endOfDay)
}

// Effective returns the status an end user should see. Organizer-set
// cancelled/postponed/closed are authoritative; otherwise a past event
// displays as closed and everything else shows the stored status.
func Effective(e *model.Event, now time.Time) string {
	switch e.Status {
	case model.StatusCancelled, model.StatusPostponed, model.StatusClosed:
		return e.Status
	}
	if IsPastEvent(e.BeginDate, e.EndDate, now) {
		return model.StatusClosed
	}
	return e.Status
}

// IsRegisClosed reports whether the registration action should be offered.
// Separate signal from the display status: an event can still display "open"
// while registration is cut off by capacity.
func IsRegisClosed(e *model.Event, now time.Time) bool {
	return e.RegisClosed ||
		e.Status == model.StatusFull ||
		e.Registered >= e.Capacity ||
		IsPastEvent(e.BeginDate, e.EndDate, now)
}

// IsFull reports capacity exhaustion, by explicit status or by count.
func IsFull(e *model.Event) bool {
	return e.Status == model.StatusFull || e.Registered >= e.Capacity
}
