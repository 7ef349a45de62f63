package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/alert"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/request"
	"github.com/iota-uz/recruit-sla/pkg/bizcal"
	"github.com/iota-uz/recruit-sla/pkg/identnorm"
	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

// DashboardService answers the operational milestone views. Instances of
// requests whose current status is frozen (paused, cancelled by default)
// never appear.
type DashboardService struct {
	instances milestone.InstanceRepository
	directory request.Directory
	statuses  *StatusResolver
	calendar  milestone.Calendar
	clock     clockwork.Clock
	loc       *time.Location
}

func NewDashboardService(
	instances milestone.InstanceRepository,
	directory request.Directory,
	statuses *StatusResolver,
	calendar milestone.Calendar,
	clock clockwork.Clock,
	loc *time.Location,
) *DashboardService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		instances: instances,
		directory: directory,
		statuses:  statuses,
		calendar:  calendar,
		clock:     clock,
		loc:       loc,
	}
}

func (s *DashboardService) ListOverdue(ctx context.Context, f milestone.DashboardFilter) ([]milestone.View, error) {
	return s.List(ctx, milestone.DashboardOverdue, f)
}

func (s *DashboardService) ListDueSoon(ctx context.Context, f milestone.DashboardFilter) ([]milestone.View, error) {
	return s.List(ctx, milestone.DashboardDueSoon, f)
}

func (s *DashboardService) ListDormant(ctx context.Context, f milestone.DashboardFilter) ([]milestone.View, error) {
	return s.List(ctx, milestone.DashboardDormant, f)
}

func (s *DashboardService) ListCompleted(ctx context.Context, f milestone.DashboardFilter) ([]milestone.View, error) {
	return s.List(ctx, milestone.DashboardCompleted, f)
}

// List runs one dashboard. Missing request metadata or status history never
// drops an entry by itself; only a consultant filter can exclude it.
func (s *DashboardService) List(ctx context.Context, kind milestone.DashboardKind, f milestone.DashboardFilter) ([]milestone.View, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown dashboard %q", serrors.ErrInvalidArgument, kind)
	}
	ctx, span := tracer.Start(ctx, "milestones.dashboard")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(kind)))

	today := bizcal.Today(s.clock.Now(), s.loc)
	candidates, err := s.instances.ListForDashboard(ctx, milestone.DashboardQuery{Kind: kind, Today: today})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		milestonesDashboardEntries.WithLabelValues(string(kind)).Set(0)
		return []milestone.View{}, nil
	}

	requestIDs := make([]uuid.UUID, 0, len(candidates))
	for _, inst := range candidates {
		requestIDs = append(requestIDs, inst.RequestID)
	}
	requestIDs = uniqueIDs(requestIDs)

	infos, err := s.directory.GetMany(ctx, requestIDs)
	if err != nil {
		return nil, err
	}
	current, err := s.statuses.CurrentStatuses(ctx, requestIDs)
	if err != nil {
		return nil, err
	}

	consultant := strings.TrimSpace(f.ConsultantID)
	out := make([]milestone.View, 0, len(candidates))
	for _, inst := range candidates {
		if code, ok := current[inst.RequestID]; ok && s.statuses.IsFrozen(code) {
			continue
		}
		info, known := infos[inst.RequestID]
		if consultant != "" && (!known || !identnorm.Equal(info.ConsultantID, consultant)) {
			continue
		}
		v := milestone.NewView(s.calendar, inst, today)
		if kind == milestone.DashboardDueSoon && v.AlertState != alert.Warning {
			continue
		}
		if known {
			v.Request = &info
		}
		out = append(out, v)
	}

	sortViews(kind, out)
	milestonesDashboardEntries.WithLabelValues(string(kind)).Set(float64(len(out)))
	return out, nil
}

// sortViews orders by deadline; dormant views have none and go by request, then position.
func sortViews(kind milestone.DashboardKind, views []milestone.View) {
	byRequest := func(a, b milestone.View) bool {
		if a.RequestID != b.RequestID {
			return a.RequestID.String() < b.RequestID.String()
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Name < b.Name
	}
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if kind != milestone.DashboardDormant && a.Deadline != nil && b.Deadline != nil && !a.Deadline.Equal(*b.Deadline) {
			return a.Deadline.Before(*b.Deadline)
		}
		return byRequest(a, b)
	})
}
