package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/recruit-sla/pkg/repo"
)

type Publisher interface {
	Enqueue(ctx context.Context, tx repo.Tx, msg Message) (sequence int64, err error)
}

type publisher struct {
	table pgx.Identifier
	m     *metrics
}

// NewPublisher returns a Publisher writing into table.
func NewPublisher(table pgx.Identifier) (Publisher, error) {
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	return &publisher{table: table, m: getMetrics()}, nil
}

// Enqueue inserts msg using tx. Re-enqueueing the same EventID returns the
// original sequence instead of creating a second row.
func (p *publisher) Enqueue(ctx context.Context, tx repo.Tx, msg Message) (int64, error) {
	switch {
	case msg.EventID == uuid.Nil:
		return 0, invalidConfig("event_id is required")
	case msg.Topic == "":
		return 0, invalidConfig("topic is required")
	case len(msg.Payload) == 0:
		return 0, invalidConfig("payload is required")
	}

	q := fmt.Sprintf(
		`INSERT INTO %s (aggregate_id, topic, payload, event_id, available_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
		 RETURNING sequence`,
		p.table.Sanitize(),
	)
	var sequence int64
	if err := tx.QueryRow(ctx, q, msg.AggregateID, msg.Topic, []byte(msg.Payload), msg.EventID).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("outbox enqueue: %w", err)
	}
	p.m.enqueueTotal.WithLabelValues(TableLabel(p.table), msg.Topic).Inc()
	return sequence, nil
}
