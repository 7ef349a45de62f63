package persistence

import (
	"context"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/request"
	"github.com/iota-uz/recruit-sla/pkg/composables"
)

// RequestDirectory reads request metadata from the recruitment_requests table.
type RequestDirectory struct{}

func NewRequestDirectory() request.Directory {
	return &RequestDirectory{}
}

func (d *RequestDirectory) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]request.Info, error) {
	out := make(map[uuid.UUID]request.Info, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT id, service_type, consultant_id, title, client_name
		FROM recruitment_requests
		WHERE id = ANY($1)`, pgUUIDArray(ids))
	if err != nil {
		return nil, gerrors.Wrap(err, "list recruitment requests")
	}
	defer rows.Close()

	for rows.Next() {
		var info request.Info
		if err := rows.Scan(&info.ID, &info.ServiceType, &info.ConsultantID, &info.Title, &info.ClientName); err != nil {
			return nil, gerrors.Wrap(err, "scan recruitment request")
		}
		out[info.ID] = info
	}
	return out, rows.Err()
}
