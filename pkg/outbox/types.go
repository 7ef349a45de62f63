// Package outbox implements a transactional outbox on Postgres.
//
// Writers call Publisher.Enqueue inside the same transaction as their domain
// change. A Relay claims pending rows with FOR UPDATE SKIP LOCKED, hands them
// to a Dispatcher and records ack, retry or dead state. Delivery is at least
// once; consumers deduplicate on EventID.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

var ErrInvalidConfig = serrors.NewError("OUTBOX_INVALID_CONFIG", "invalid outbox configuration", "")

func invalidConfig(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidConfig}, args...)...)
}

// Message is one row of an outbox table. AggregateID groups messages that
// belong to the same recruitment request.
type Message struct {
	AggregateID uuid.UUID
	Topic       string
	EventID     uuid.UUID
	Payload     json.RawMessage
}

type Meta struct {
	Table       pgx.Identifier
	AggregateID uuid.UUID
	Topic       string
	EventID     uuid.UUID
	Sequence    int64
	Attempts    int
}

type DispatchedMessage struct {
	Meta    Meta
	Payload json.RawMessage
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg DispatchedMessage) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg DispatchedMessage) error

func (f DispatcherFunc) Dispatch(ctx context.Context, msg DispatchedMessage) error {
	return f(ctx, msg)
}

func TableLabel(table pgx.Identifier) string {
	return strings.Join(table, ".")
}
