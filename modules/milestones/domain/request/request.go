// Package request describes the recruitment requests that own milestones.
// Requests are managed elsewhere; this module only reads them.
package request

import (
	"context"

	"github.com/google/uuid"
)

type Info struct {
	ID           uuid.UUID `json:"id"`
	ServiceType  string    `json:"service_type"`
	ConsultantID string    `json:"consultant_id"`
	Title        string    `json:"title"`
	ClientName   string    `json:"client_name"`
}

type Directory interface {
	// GetMany returns metadata for the known ids in one round trip. Unknown ids are omitted.
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Info, error)
}
