// Package statushistory projects the append-only request status log.
//
// The log is never updated in place. A request's current status is the event
// with the latest OccurredAt; ties are broken by the highest ID, which is the
// insertion order.
package statushistory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Code string

const (
	Open      Code = "open"
	Paused    Code = "paused"
	Cancelled Code = "cancelled"
	Closed    Code = "closed"
)

// NormalizeCode lower-cases and trims a status code read from an external source.
func NormalizeCode(s string) Code {
	return Code(strings.ToLower(strings.TrimSpace(s)))
}

type Event struct {
	ID         int64
	RequestID  uuid.UUID
	StatusCode Code
	OccurredAt time.Time
	Reason     *string
}

// newer reports whether a supersedes b.
func newer(a, b Event) bool {
	if !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.After(b.OccurredAt)
	}
	return a.ID > b.ID
}

// Latest returns the current event per request. Requests without events are absent.
func Latest(events []Event) map[uuid.UUID]Event {
	out := make(map[uuid.UUID]Event)
	for _, ev := range events {
		if cur, ok := out[ev.RequestID]; !ok || newer(ev, cur) {
			out[ev.RequestID] = ev
		}
	}
	return out
}

// LatestAsOf is Latest restricted to events that occurred at or before at.
func LatestAsOf(events []Event, at time.Time) map[uuid.UUID]Event {
	filtered := make([]Event, 0, len(events))
	for _, ev := range events {
		if !ev.OccurredAt.After(at) {
			filtered = append(filtered, ev)
		}
	}
	return Latest(filtered)
}

// Sorted returns a copy of events in the order they take effect.
func Sorted(events []Event) []Event {
	out := append([]Event(nil), events...)
	sort.SliceStable(out, func(i, j int) bool { return newer(out[j], out[i]) })
	return out
}

// FrozenSet is the set of status codes whose requests are hidden from operational views.
type FrozenSet map[Code]struct{}

func NewFrozenSet(codes ...string) FrozenSet {
	set := make(FrozenSet, len(codes))
	for _, c := range codes {
		if code := NormalizeCode(c); code != "" {
			set[code] = struct{}{}
		}
	}
	return set
}

func DefaultFrozenSet() FrozenSet {
	return NewFrozenSet(string(Paused), string(Cancelled))
}

func (s FrozenSet) Contains(code Code) bool {
	_, ok := s[NormalizeCode(string(code))]
	return ok
}

type Repository interface {
	// ListByRequests returns every event of the given requests in a single round trip.
	ListByRequests(ctx context.Context, requestIDs []uuid.UUID) ([]Event, error)
}

// Cache holds projected current events keyed by request. Misses are omitted
// from GetMany; entries may lag the log by up to the cache's TTL.
type Cache interface {
	GetMany(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]Event, error)
	SetMany(ctx context.Context, events map[uuid.UUID]Event) error
	Invalidate(ctx context.Context, requestIDs ...uuid.UUID) error
}
