package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/events"
	"github.com/iota-uz/recruit-sla/modules/milestones/services"
	"github.com/iota-uz/recruit-sla/pkg/application"
	"github.com/iota-uz/recruit-sla/pkg/outbox"
)

// OutboxEventsHandler is the in-process consumer of relayed milestone events.
// It drops the cached status of the affected request and writes an audit log
// line. Notification fan-out belongs to external consumers.
type OutboxEventsHandler struct {
	statuses *services.StatusResolver
	log      *logrus.Logger
}

func RegisterOutboxEventHandlers(app application.Application, log *logrus.Logger) {
	handler := &OutboxEventsHandler{
		statuses: app.Service(services.StatusResolver{}).(*services.StatusResolver),
		log:      log,
	}
	app.EventPublisher().Subscribe(handler.onMilestoneEventV1)
}

func (h *OutboxEventsHandler) onMilestoneEventV1(meta *outbox.Meta, ev *events.MilestoneEventV1) error {
	if h == nil || meta == nil || ev == nil {
		return nil
	}
	if h.log != nil {
		fields := logrus.Fields{
			"topic":      meta.Topic,
			"event_id":   meta.EventID,
			"sequence":   meta.Sequence,
			"request_id": ev.RequestID,
		}
		if ev.InstanceID != uuid.Nil {
			fields["instance_id"] = ev.InstanceID
		}
		if ev.Deadline != nil {
			fields["deadline"] = ev.Deadline.Format("2006-01-02")
		}
		h.log.WithFields(fields).Info("milestone event delivered")
	}
	if h.statuses != nil {
		return h.statuses.Forget(context.Background(), ev.RequestID)
	}
	return nil
}
