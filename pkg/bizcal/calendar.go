// Package bizcal implements business-day arithmetic over weekends and a fixed holiday set.
//
// All inputs are reduced to calendar dates (midnight UTC) before any arithmetic,
// so results do not depend on the time-of-day or zone of the caller's values.
package bizcal

import (
	"fmt"
	"sort"
	"time"

	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

type Holiday struct {
	Date time.Time
	Name string
}

// Calendar is immutable after construction and safe for concurrent use.
type Calendar struct {
	holidays map[time.Time]string
}

func New(holidays ...Holiday) *Calendar {
	c := &Calendar{holidays: make(map[time.Time]string, len(holidays))}
	for _, h := range holidays {
		c.holidays[Date(h.Date)] = h.Name
	}
	return c
}

// Date truncates t to its calendar date at midnight UTC, reading the
// year/month/day in t's own location.
func Date(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date as observed in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Date(now.In(loc))
}

func (c *Calendar) IsHoliday(t time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.holidays[Date(t)]
	return ok
}

func (c *Calendar) IsBusinessDay(t time.Time) bool {
	d := Date(t)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(d)
}

// Holidays returns the configured holidays sorted by date.
func (c *Calendar) Holidays() []Holiday {
	if c == nil {
		return nil
	}
	out := make([]Holiday, 0, len(c.holidays))
	for d, name := range c.holidays {
		out = append(out, Holiday{Date: d, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// AddBusinessDays advances start by n business days. n == 0 returns the start
// date unchanged even when it is not a business day.
func (c *Calendar) AddBusinessDays(start time.Time, n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, fmt.Errorf("%w: business day count must be non-negative, got %d", serrors.ErrInvalidArgument, n)
	}
	d := Date(start)
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		if c.IsBusinessDay(d) {
			n--
		}
	}
	return d, nil
}

// BusinessDaysBetween returns a signed business-day distance from a to b.
//
// When b is after a it counts business days in (a, b]. When b is before a it
// returns minus the business days in [b, a), and never more than -1: a date
// already behind a is late even when only weekends or holidays lie between.
func (c *Calendar) BusinessDaysBetween(a, b time.Time) int {
	from, to := Date(a), Date(b)
	switch {
	case from.Equal(to):
		return 0
	case to.After(from):
		n := 0
		for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
			if c.IsBusinessDay(d) {
				n++
			}
		}
		return n
	default:
		n := 0
		for d := to; d.Before(from); d = d.AddDate(0, 0, 1) {
			if c.IsBusinessDay(d) {
				n++
			}
		}
		return -max(n, 1)
	}
}
