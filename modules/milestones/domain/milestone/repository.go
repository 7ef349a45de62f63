package milestone

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TemplateRepository interface {
	// ListByServiceType returns templates ordered by position, then name.
	ListByServiceType(ctx context.Context, serviceType ServiceType) ([]Template, error)
	ListServiceTypes(ctx context.Context) ([]ServiceType, error)
	// GetByID returns serrors.ErrNotFound when missing.
	GetByID(ctx context.Context, id uuid.UUID) (Template, error)
	Create(ctx context.Context, t Template) (Template, error)
	Update(ctx context.Context, t Template) (Template, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type DashboardKind string

const (
	DashboardOverdue   DashboardKind = "overdue"
	DashboardDueSoon   DashboardKind = "due-soon"
	DashboardDormant   DashboardKind = "dormant"
	DashboardCompleted DashboardKind = "completed"
)

func (k DashboardKind) Valid() bool {
	switch k {
	case DashboardOverdue, DashboardDueSoon, DashboardDormant, DashboardCompleted:
		return true
	}
	return false
}

// DashboardQuery selects the candidate set of one dashboard by date predicate.
type DashboardQuery struct {
	Kind  DashboardKind
	Today time.Time
}

type DashboardFilter struct {
	ConsultantID string
}

type InstanceRepository interface {
	CreateMany(ctx context.Context, instances []Instance) ([]Instance, error)
	// GetByID returns serrors.ErrNotFound when missing.
	GetByID(ctx context.Context, id uuid.UUID) (Instance, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Instance, error)
	ListDormantByAnchor(ctx context.Context, requestID uuid.UUID, anchorEvent string) ([]Instance, error)
	// Activate writes the activations in one statement, skipping rows that are
	// no longer dormant, and returns only the rows it changed.
	Activate(ctx context.Context, activations []Activation) ([]Instance, error)
	// Complete marks an active, incomplete instance. ok is false when no row matched.
	Complete(ctx context.Context, id uuid.UUID, at time.Time) (inst Instance, ok bool, err error)
	CountByTemplate(ctx context.Context, templateID uuid.UUID) (int64, error)
	ListForDashboard(ctx context.Context, q DashboardQuery) ([]Instance, error)
}
