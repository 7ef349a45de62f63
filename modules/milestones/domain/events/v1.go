package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicMilestonesInstantiatedV1 = "milestone.instantiated.v1"
	TopicMilestoneActivatedV1     = "milestone.activated.v1"
	TopicMilestoneCompletedV1     = "milestone.completed.v1"
	EventVersionV1                = 1
)

// MilestoneEventV1 is the outbox payload for every milestone topic. Date
// fields are set only for the transitions that produce them.
type MilestoneEventV1 struct {
	EventID         uuid.UUID  `json:"event_id"`
	EventVersion    int        `json:"event_version"`
	Topic           string     `json:"topic"`
	CorrelationID   string     `json:"correlation_id,omitempty"`
	TransactionTime time.Time  `json:"transaction_time"`
	RequestID       uuid.UUID  `json:"request_id"`
	InstanceID      uuid.UUID  `json:"instance_id,omitempty"`
	TemplateID      uuid.UUID  `json:"template_id,omitempty"`
	Name            string     `json:"name,omitempty"`
	AnchorEvent     string     `json:"anchor_event,omitempty"`
	BaseDate        *time.Time `json:"base_date,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	InstanceCount   int        `json:"instance_count,omitempty"`
}
