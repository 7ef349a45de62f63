package persistence

import (
	"context"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/statushistory"
	"github.com/iota-uz/recruit-sla/pkg/composables"
)

type StatusEventRepository struct{}

func NewStatusEventRepository() statushistory.Repository {
	return &StatusEventRepository{}
}

func (r *StatusEventRepository) ListByRequests(ctx context.Context, requestIDs []uuid.UUID) ([]statushistory.Event, error) {
	if len(requestIDs) == 0 {
		return []statushistory.Event{}, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT id, request_id, status_code, occurred_at, reason
		FROM request_status_events
		WHERE request_id = ANY($1)
		ORDER BY request_id, occurred_at, id`, pgUUIDArray(requestIDs))
	if err != nil {
		return nil, gerrors.Wrap(err, "list request status events")
	}
	defer rows.Close()

	out := make([]statushistory.Event, 0)
	for rows.Next() {
		var (
			ev   statushistory.Event
			code string
		)
		if err := rows.Scan(&ev.ID, &ev.RequestID, &code, &ev.OccurredAt, &ev.Reason); err != nil {
			return nil, gerrors.Wrap(err, "scan request status event")
		}
		ev.StatusCode = statushistory.NormalizeCode(code)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.Wrap(err, "list request status events")
	}
	return out, nil
}
