package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/statushistory"
)

// StatusResolver derives current request statuses from the append-only log.
type StatusResolver struct {
	repo   statushistory.Repository
	frozen statushistory.FrozenSet
	cache  statushistory.Cache
}

func NewStatusResolver(repo statushistory.Repository, frozen statushistory.FrozenSet) *StatusResolver {
	if len(frozen) == 0 {
		frozen = statushistory.DefaultFrozenSet()
	}
	return &StatusResolver{repo: repo, frozen: frozen}
}

// WithCache enables read-through caching of current statuses.
func (r *StatusResolver) WithCache(cache statushistory.Cache) *StatusResolver {
	r.cache = cache
	return r
}

// CurrentStatus returns nil when the request has no status history.
func (r *StatusResolver) CurrentStatus(ctx context.Context, requestID uuid.UUID) (*statushistory.Code, error) {
	statuses, err := r.CurrentStatuses(ctx, []uuid.UUID{requestID})
	if err != nil {
		return nil, err
	}
	code, ok := statuses[requestID]
	if !ok {
		return nil, nil
	}
	return &code, nil
}

// CurrentStatuses resolves many requests with a single history query.
// Requests without history are absent from the result.
func (r *StatusResolver) CurrentStatuses(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]statushistory.Code, error) {
	out := make(map[uuid.UUID]statushistory.Code, len(requestIDs))
	ids := uniqueIDs(requestIDs)
	if len(ids) == 0 {
		return out, nil
	}

	missing := ids
	if r.cache != nil {
		cached, err := r.cache.GetMany(ctx, ids)
		if err != nil {
			logWithFields(ctx, logrus.WarnLevel, "status cache read failed", logrus.Fields{"error": err.Error()})
			cached = nil
		}
		missing = make([]uuid.UUID, 0, len(ids))
		for _, id := range ids {
			if ev, ok := cached[id]; ok {
				out[id] = ev.StatusCode
				continue
			}
			missing = append(missing, id)
		}
		recordCacheLookup(len(ids)-len(missing), len(missing))
		if len(missing) == 0 {
			return out, nil
		}
	}

	history, err := r.repo.ListByRequests(ctx, missing)
	if err != nil {
		return nil, err
	}
	latest := statushistory.Latest(history)
	for id, ev := range latest {
		out[id] = ev.StatusCode
	}
	if r.cache != nil && len(latest) > 0 {
		if err := r.cache.SetMany(ctx, latest); err != nil {
			logWithFields(ctx, logrus.WarnLevel, "status cache write failed", logrus.Fields{"error": err.Error()})
		}
	}
	return out, nil
}

// StatusAsOf returns the status in effect at the given instant, or nil.
func (r *StatusResolver) StatusAsOf(ctx context.Context, requestID uuid.UUID, at time.Time) (*statushistory.Code, error) {
	history, err := r.repo.ListByRequests(ctx, []uuid.UUID{requestID})
	if err != nil {
		return nil, err
	}
	ev, ok := statushistory.LatestAsOf(history, at)[requestID]
	if !ok {
		return nil, nil
	}
	return &ev.StatusCode, nil
}

// History returns the status events of requestID in the order they took effect.
func (r *StatusResolver) History(ctx context.Context, requestID uuid.UUID) ([]statushistory.Event, error) {
	history, err := r.repo.ListByRequests(ctx, []uuid.UUID{requestID})
	if err != nil {
		return nil, err
	}
	return statushistory.Sorted(history), nil
}

// Forget drops cached statuses of the given requests. It is a no-op without a cache.
func (r *StatusResolver) Forget(ctx context.Context, requestIDs ...uuid.UUID) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx, requestIDs...)
}

func (r *StatusResolver) IsFrozen(code statushistory.Code) bool {
	return r.frozen.Contains(code)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
