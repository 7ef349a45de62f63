package alert_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/alert"
	"github.com/iota-uz/recruit-sla/pkg/bizcal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestClassify_Boundaries(t *testing.T) {
	cal := bizcal.New()
	today := date(2026, time.October, 12) // Monday
	const warn = 3

	cases := []struct {
		name     string
		deadline time.Time
		want     alert.State
	}{
		{name: "three days left warns", deadline: date(2026, time.October, 15), want: alert.Warning},
		{name: "four days left is on track", deadline: date(2026, time.October, 16), want: alert.OnTrack},
		{name: "due today warns", deadline: today, want: alert.Warning},
		{name: "one day late is overdue", deadline: date(2026, time.October, 9), want: alert.Overdue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, alert.Classify(cal, ptr(tc.deadline), nil, warn, today))
		})
	}
}

func TestClassify_Precedence(t *testing.T) {
	cal := bizcal.New()
	today := date(2026, time.October, 12)

	require.Equal(t, alert.Dormant, alert.Classify(cal, nil, nil, 3, today))
	require.Equal(t, alert.Dormant, alert.Classify(cal, nil, ptr(today), 3, today), "no deadline wins over completion")
	require.Equal(t, alert.Completed, alert.Classify(cal, ptr(date(2026, time.October, 1)), ptr(today), 3, today))
}

func TestClassify_WeekendAfterDeadline(t *testing.T) {
	cal := bizcal.New()
	friday := date(2026, time.October, 16)
	saturday := date(2026, time.October, 17)
	require.Equal(t, alert.Overdue, alert.Classify(cal, ptr(friday), nil, 3, saturday))
}

func TestClassify_WeekendDeadlinePassed(t *testing.T) {
	cal := bizcal.New()
	saturday := date(2026, time.October, 17)
	monday := date(2026, time.October, 19)

	require.Equal(t, alert.Overdue, alert.Classify(cal, ptr(saturday), nil, 3, monday))
	require.Equal(t, "1 business day overdue", alert.Describe(cal, ptr(saturday), nil, monday))
	require.Equal(t, -1, *alert.Remaining(cal, ptr(saturday), monday))
}

func TestClassify_ZeroWarnWindow(t *testing.T) {
	cal := bizcal.New()
	today := date(2026, time.October, 12)
	require.Equal(t, alert.Warning, alert.Classify(cal, ptr(today), nil, 0, today))
	require.Equal(t, alert.OnTrack, alert.Classify(cal, ptr(date(2026, time.October, 13)), nil, 0, today))
}

func TestDescribe(t *testing.T) {
	cal := bizcal.New()
	today := date(2026, time.October, 12)

	require.Equal(t, "not started", alert.Describe(cal, nil, nil, today))
	require.Equal(t, "completed", alert.Describe(cal, ptr(today), ptr(today), today))
	require.Equal(t, "due today", alert.Describe(cal, ptr(today), nil, today))
	require.Equal(t, "due in 1 business day", alert.Describe(cal, ptr(date(2026, time.October, 13)), nil, today))
	require.Equal(t, "due in 5 business days", alert.Describe(cal, ptr(date(2026, time.October, 19)), nil, today))
	require.Equal(t, "1 business day overdue", alert.Describe(cal, ptr(date(2026, time.October, 9)), nil, today))
	require.Equal(t, "2 business days overdue", alert.Describe(cal, ptr(date(2026, time.October, 8)), nil, today))
}

func TestRemaining(t *testing.T) {
	cal := bizcal.New()
	today := date(2026, time.October, 12)
	require.Nil(t, alert.Remaining(cal, nil, today))
	require.Equal(t, 4, *alert.Remaining(cal, ptr(date(2026, time.October, 16)), today))
}

func TestCompletedLate(t *testing.T) {
	deadline := date(2026, time.October, 16)
	require.False(t, alert.CompletedLate(nil, ptr(deadline)))
	require.False(t, alert.CompletedLate(ptr(deadline), nil))
	require.False(t, alert.CompletedLate(ptr(deadline), ptr(deadline.Add(18*time.Hour))), "same day is on time")
	require.True(t, alert.CompletedLate(ptr(deadline), ptr(date(2026, time.October, 19))))
}
