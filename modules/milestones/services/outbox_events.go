package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/events"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/outbox"
)

// eventWriter enqueues milestone events in the caller's transaction.
type eventWriter struct {
	publisher outbox.Publisher
}

func newInstanceEvent(topic string, inst milestone.Instance, now time.Time) events.MilestoneEventV1 {
	return events.MilestoneEventV1{
		EventID:         uuid.New(),
		EventVersion:    events.EventVersionV1,
		Topic:           topic,
		TransactionTime: now.UTC(),
		RequestID:       inst.RequestID,
		InstanceID:      inst.ID,
		TemplateID:      inst.TemplateID,
		Name:            inst.Name,
		AnchorEvent:     inst.AnchorEvent,
		BaseDate:        inst.BaseDate,
		Deadline:        inst.Deadline,
		CompletedAt:     inst.CompletedAt,
	}
}

func (w eventWriter) enqueue(ctx context.Context, evs ...events.MilestoneEventV1) error {
	if w.publisher == nil || len(evs) == 0 || shouldSkipOutboxEnqueue(ctx) {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	correlationID := composables.UseRequestID(ctx)
	for _, ev := range evs {
		if ev.CorrelationID == "" {
			ev.CorrelationID = correlationID
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ev.Topic, err)
		}
		if _, err := w.publisher.Enqueue(ctx, tx, outbox.Message{
			AggregateID: ev.RequestID,
			Topic:       ev.Topic,
			EventID:     ev.EventID,
			Payload:     payload,
		}); err != nil {
			return err
		}
	}
	return nil
}
