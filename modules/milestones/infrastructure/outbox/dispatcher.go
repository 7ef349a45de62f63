package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/events"
	"github.com/iota-uz/recruit-sla/pkg/eventbus"
	"github.com/iota-uz/recruit-sla/pkg/outbox"
)

// Dispatcher decodes milestone outbox rows and publishes them on the event
// bus as (*outbox.Meta, *events.MilestoneEventV1).
type Dispatcher struct {
	bus eventbus.EventBusWithError
}

func NewDispatcher(bus eventbus.EventBusWithError) *Dispatcher {
	return &Dispatcher{bus: bus}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	_ = ctx
	if d == nil || d.bus == nil {
		return fmt.Errorf("milestones outbox dispatcher: bus is nil")
	}

	switch msg.Meta.Topic {
	case events.TopicMilestonesInstantiatedV1, events.TopicMilestoneActivatedV1, events.TopicMilestoneCompletedV1:
	default:
		return fmt.Errorf("milestones outbox dispatcher: unsupported topic %q", msg.Meta.Topic)
	}

	var ev events.MilestoneEventV1
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("milestones outbox dispatcher: decode payload: %w", err)
	}

	meta := msg.Meta
	return d.bus.PublishE(&meta, &ev)
}
