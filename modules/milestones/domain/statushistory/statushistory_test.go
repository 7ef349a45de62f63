package statushistory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLatest_PicksLatestOccurrence(t *testing.T) {
	req := uuid.New()
	t0 := time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)

	events := []Event{
		{ID: 3, RequestID: req, StatusCode: Open, OccurredAt: t0.Add(2 * time.Hour)},
		{ID: 1, RequestID: req, StatusCode: Open, OccurredAt: t0},
		{ID: 2, RequestID: req, StatusCode: Paused, OccurredAt: t0.Add(time.Hour)},
	}
	got := Latest(events)
	require.Len(t, got, 1)
	require.Equal(t, Open, got[req].StatusCode)
	require.Equal(t, int64(3), got[req].ID)
}

func TestLatest_BackdatedEventDoesNotWin(t *testing.T) {
	req := uuid.New()
	t0 := time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: 1, RequestID: req, StatusCode: Paused, OccurredAt: t0},
		{ID: 2, RequestID: req, StatusCode: Cancelled, OccurredAt: t0.Add(-24 * time.Hour)},
	}
	require.Equal(t, Paused, Latest(events)[req].StatusCode)
}

func TestLatest_TieBrokenByID(t *testing.T) {
	req := uuid.New()
	at := time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: 8, RequestID: req, StatusCode: Paused, OccurredAt: at},
		{ID: 7, RequestID: req, StatusCode: Open, OccurredAt: at},
	}
	require.Equal(t, Paused, Latest(events)[req].StatusCode)
}

func TestLatest_MultipleRequests(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	at := time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)
	got := Latest([]Event{
		{ID: 1, RequestID: a, StatusCode: Open, OccurredAt: at},
		{ID: 2, RequestID: b, StatusCode: Cancelled, OccurredAt: at},
	})
	require.Equal(t, Open, got[a].StatusCode)
	require.Equal(t, Cancelled, got[b].StatusCode)
	_, ok := got[c]
	require.False(t, ok)
}

func TestLatestAsOf(t *testing.T) {
	req := uuid.New()
	t0 := time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: 1, RequestID: req, StatusCode: Open, OccurredAt: t0},
		{ID: 2, RequestID: req, StatusCode: Paused, OccurredAt: t0.Add(48 * time.Hour)},
	}
	require.Equal(t, Open, LatestAsOf(events, t0.Add(24*time.Hour))[req].StatusCode)
	require.Equal(t, Paused, LatestAsOf(events, t0.Add(48*time.Hour))[req].StatusCode)
	require.Empty(t, LatestAsOf(events, t0.Add(-time.Second)))
}

func TestSorted(t *testing.T) {
	req := uuid.New()
	t0 := time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: 3, RequestID: req, OccurredAt: t0.Add(time.Hour)},
		{ID: 2, RequestID: req, OccurredAt: t0},
		{ID: 1, RequestID: req, OccurredAt: t0},
	}
	sorted := Sorted(events)
	require.Equal(t, []int64{1, 2, 3}, []int64{sorted[0].ID, sorted[1].ID, sorted[2].ID})
	require.Equal(t, int64(3), events[0].ID, "input is not reordered")
}

func TestFrozenSet(t *testing.T) {
	set := DefaultFrozenSet()
	require.True(t, set.Contains(Paused))
	require.True(t, set.Contains(Code(" Cancelled ")))
	require.False(t, set.Contains(Open))

	custom := NewFrozenSet("on-hold", "", "PAUSED")
	require.True(t, custom.Contains("on-hold"))
	require.True(t, custom.Contains(Paused))
	require.Len(t, custom, 2)
}
