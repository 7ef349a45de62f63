package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/alert"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/events"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/pkg/bizcal"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/outbox"
	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

type InstanceServiceOptions struct {
	// Strict makes InstantiateForRequest return the existing instances
	// instead of copying the templates a second time.
	Strict    bool
	Clock     clockwork.Clock
	Location  *time.Location
	Publisher outbox.Publisher
}

// InstanceService owns the milestone lifecycle: dormant, active, completed.
type InstanceService struct {
	templates milestone.TemplateRepository
	instances milestone.InstanceRepository
	calendar  milestone.Calendar
	events    eventWriter
	clock     clockwork.Clock
	loc       *time.Location
	strict    bool
	inTx      txRunner
}

func NewInstanceService(
	templates milestone.TemplateRepository,
	instances milestone.InstanceRepository,
	calendar milestone.Calendar,
	opts InstanceServiceOptions,
) *InstanceService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &InstanceService{
		templates: templates,
		instances: instances,
		calendar:  calendar,
		events:    eventWriter{publisher: opts.Publisher},
		clock:     opts.Clock,
		loc:       opts.Location,
		strict:    opts.Strict,
		inTx:      composables.InTx,
	}
}

// Today is the current calendar day in the configured zone.
func (s *InstanceService) Today() time.Time {
	return bizcal.Today(s.clock.Now(), s.loc)
}

// InstantiateForRequest copies every template of serviceType into a dormant
// instance of requestID. A service type without templates yields an empty slice.
func (s *InstanceService) InstantiateForRequest(ctx context.Context, requestID uuid.UUID, serviceType milestone.ServiceType) ([]milestone.Instance, error) {
	serviceType = milestone.ServiceType(strings.TrimSpace(string(serviceType)))
	if requestID == uuid.Nil {
		return nil, fmt.Errorf("%w: request id is required", serrors.ErrInvalidArgument)
	}
	if serviceType == "" {
		return nil, fmt.Errorf("%w: service type is required", serrors.ErrInvalidArgument)
	}

	ctx, span := tracer.Start(ctx, "milestones.instantiate")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID.String()), attribute.String("service_type", string(serviceType)))

	var out []milestone.Instance
	err := s.inTx(ctx, func(txCtx context.Context) error {
		if s.strict {
			existing, err := s.instances.ListByRequest(txCtx, requestID)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				out = existing
				return nil
			}
		}

		templates, err := s.templates.ListByServiceType(txCtx, serviceType)
		if err != nil {
			return err
		}
		if len(templates) == 0 {
			out = []milestone.Instance{}
			return nil
		}

		fresh := make([]milestone.Instance, 0, len(templates))
		for _, t := range templates {
			fresh = append(fresh, milestone.NewInstance(t, requestID))
		}
		out, err = s.instances.CreateMany(txCtx, fresh)
		if err != nil {
			return err
		}

		ev := events.MilestoneEventV1{
			EventID:         uuid.New(),
			EventVersion:    events.EventVersionV1,
			Topic:           events.TopicMilestonesInstantiatedV1,
			TransactionTime: s.clock.Now().UTC(),
			RequestID:       requestID,
			InstanceCount:   len(out),
		}
		if err := s.events.enqueue(txCtx, ev); err != nil {
			return err
		}
		milestonesInstantiated.WithLabelValues(string(serviceType)).Add(float64(len(out)))
		return nil
	})
	if err != nil {
		return nil, mapPgError("instantiate milestones", err)
	}

	logWithFields(ctx, logrus.InfoLevel, "milestones instantiated", logrus.Fields{
		"request_id":   requestID,
		"service_type": serviceType,
		"count":        len(out),
	})
	return out, nil
}

// ActivateByEvent starts the clock of every dormant instance of requestID
// anchored on anchorEvent. Instances that are already active are left alone,
// so firing the same event twice returns an empty slice the second time.
func (s *InstanceService) ActivateByEvent(ctx context.Context, requestID uuid.UUID, anchorEvent string, eventDate time.Time) ([]milestone.Instance, error) {
	anchorEvent = strings.TrimSpace(anchorEvent)
	switch {
	case requestID == uuid.Nil:
		return nil, fmt.Errorf("%w: request id is required", serrors.ErrInvalidArgument)
	case anchorEvent == "":
		return nil, fmt.Errorf("%w: anchor event is required", serrors.ErrInvalidArgument)
	case eventDate.IsZero():
		return nil, fmt.Errorf("%w: event date is required", serrors.ErrInvalidArgument)
	}

	ctx, span := tracer.Start(ctx, "milestones.activate")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID.String()), attribute.String("anchor_event", anchorEvent))

	var activated []milestone.Instance
	err := s.inTx(ctx, func(txCtx context.Context) error {
		candidates, err := s.instances.ListDormantByAnchor(txCtx, requestID, anchorEvent)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			activated = []milestone.Instance{}
			return nil
		}

		plan := make([]milestone.Activation, 0, len(candidates))
		for _, inst := range candidates {
			a, err := inst.Schedule(s.calendar, eventDate)
			if err != nil {
				return err
			}
			plan = append(plan, a)
		}

		activated, err = s.instances.Activate(txCtx, plan)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		evs := make([]events.MilestoneEventV1, 0, len(activated))
		for _, inst := range activated {
			evs = append(evs, newInstanceEvent(events.TopicMilestoneActivatedV1, inst, now))
		}
		return s.events.enqueue(txCtx, evs...)
	})
	if err != nil {
		return nil, mapPgError("activate milestones", err)
	}

	milestonesActivated.WithLabelValues(anchorEvent).Add(float64(len(activated)))
	logWithFields(ctx, logrus.InfoLevel, "milestones activated", logrus.Fields{
		"request_id":   requestID,
		"anchor_event": anchorEvent,
		"event_date":   bizcal.Date(eventDate).Format(time.DateOnly),
		"count":        len(activated),
	})
	return activated, nil
}

// Complete marks an active instance done. completedAt defaults to now.
func (s *InstanceService) Complete(ctx context.Context, instanceID uuid.UUID, completedAt *time.Time) (milestone.Instance, error) {
	at := s.clock.Now().UTC()
	if completedAt != nil {
		at = completedAt.UTC()
	}

	ctx, span := tracer.Start(ctx, "milestones.complete")
	defer span.End()
	span.SetAttributes(attribute.String("instance_id", instanceID.String()))

	var done milestone.Instance
	err := s.inTx(ctx, func(txCtx context.Context) error {
		inst, err := s.instances.GetByID(txCtx, instanceID)
		if err != nil {
			return err
		}
		if err := inst.CanComplete(); err != nil {
			return err
		}
		updated, ok, err := s.instances.Complete(txCtx, instanceID, at)
		if err != nil {
			return err
		}
		if !ok {
			// Completed by a concurrent call between the read and the update.
			return fmt.Errorf("%w: milestone %s is already completed", serrors.ErrInvalidState, instanceID)
		}
		done = updated
		return s.events.enqueue(txCtx, newInstanceEvent(events.TopicMilestoneCompletedV1, updated, s.clock.Now()))
	})
	if err != nil {
		logWithFields(ctx, logrus.WarnLevel, "milestone completion rejected", logrus.Fields{
			"instance_id": instanceID,
			"error":       err.Error(),
		})
		return milestone.Instance{}, mapPgError("complete milestone", err)
	}

	late := alert.CompletedLate(done.Deadline, done.CompletedAt)
	recordCompleted(late)
	logWithFields(ctx, logrus.InfoLevel, "milestone completed", logrus.Fields{
		"instance_id": instanceID,
		"request_id":  done.RequestID,
		"late":        late,
	})
	return done, nil
}

// ListByRequest returns every instance of requestID with read-time alert data.
func (s *InstanceService) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]milestone.View, error) {
	instances, err := s.instances.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	out := make([]milestone.View, 0, len(instances))
	for _, inst := range instances {
		out = append(out, milestone.NewView(s.calendar, inst, today))
	}
	return out, nil
}

func (s *InstanceService) GetView(ctx context.Context, instanceID uuid.UUID) (milestone.View, error) {
	inst, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		return milestone.View{}, err
	}
	return milestone.NewView(s.calendar, inst, s.Today()), nil
}
