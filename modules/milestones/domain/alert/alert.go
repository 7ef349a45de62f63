// Package alert classifies milestone deadlines relative to a reference day.
// Nothing here is persisted; states and messages are derived on every read.
package alert

import (
	"fmt"
	"time"
)

type State string

const (
	Dormant   State = "DORMANT"
	OnTrack   State = "ON_TRACK"
	Warning   State = "WARNING"
	Overdue   State = "OVERDUE"
	Completed State = "COMPLETED"
)

// Calendar is the business-day distance used for classification.
type Calendar interface {
	BusinessDaysBetween(a, b time.Time) int
}

// Classify derives the alert state. A missing deadline wins over completion,
// so an instance can never be reported COMPLETED without having been active.
func Classify(cal Calendar, deadline, completedAt *time.Time, warnBefore int, today time.Time) State {
	if deadline == nil {
		return Dormant
	}
	if completedAt != nil {
		return Completed
	}
	days := cal.BusinessDaysBetween(today, *deadline)
	switch {
	case days < 0:
		return Overdue
	case days <= warnBefore:
		return Warning
	default:
		return OnTrack
	}
}

// Remaining returns the signed business days from today to deadline, or nil
// when there is no deadline.
func Remaining(cal Calendar, deadline *time.Time, today time.Time) *int {
	if deadline == nil {
		return nil
	}
	days := cal.BusinessDaysBetween(today, *deadline)
	return &days
}

func Describe(cal Calendar, deadline, completedAt *time.Time, today time.Time) string {
	switch {
	case deadline == nil:
		return "not started"
	case completedAt != nil:
		return "completed"
	}
	days := cal.BusinessDaysBetween(today, *deadline)
	switch {
	case days < 0:
		return fmt.Sprintf("%s overdue", businessDays(-days))
	case days == 0:
		return "due today"
	default:
		return fmt.Sprintf("due in %s", businessDays(days))
	}
}

// CompletedLate reports whether completion happened on a later calendar day than the deadline.
func CompletedLate(deadline, completedAt *time.Time) bool {
	if deadline == nil || completedAt == nil {
		return false
	}
	y, m, d := completedAt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).After(*deadline)
}

func businessDays(n int) string {
	if n == 1 {
		return "1 business day"
	}
	return fmt.Sprintf("%d business days", n)
}
