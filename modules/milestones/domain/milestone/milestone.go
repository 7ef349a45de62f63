// Package milestone holds milestone templates and their per-request instances.
//
// A Template is reference data scoped to a service type. InstantiateForRequest
// copies each template's Definition into an Instance, after which the two
// evolve independently: editing a template never changes existing instances.
package milestone

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

type ServiceType string

// Definition is the part of a milestone shared by templates and instances.
type Definition struct {
	ServiceType            ServiceType `json:"service_type"`
	Name                   string      `json:"name"`
	AnchorEvent            string      `json:"anchor_event"`
	DurationBusinessDays   int         `json:"duration_business_days"`
	WarnBeforeBusinessDays int         `json:"warn_before_business_days"`
	Description            string      `json:"description,omitempty"`
	Position               int         `json:"position"`
}

type Template struct {
	ID uuid.UUID `json:"id"`
	Definition
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Stage string

const (
	StageDormant   Stage = "dormant"
	StageActive    Stage = "active"
	StageCompleted Stage = "completed"
)

// Instance is a milestone attached to one request. BaseDate and Deadline are
// either both nil (dormant) or both set.
type Instance struct {
	ID         uuid.UUID `json:"id"`
	TemplateID uuid.UUID `json:"template_id"`
	RequestID  uuid.UUID `json:"request_id"`
	Definition
	BaseDate    *time.Time `json:"base_date"`
	Deadline    *time.Time `json:"deadline"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewInstance copies t into a dormant instance for requestID.
func NewInstance(t Template, requestID uuid.UUID) Instance {
	return Instance{
		ID:         uuid.New(),
		TemplateID: t.ID,
		RequestID:  requestID,
		Definition: t.Definition,
	}
}

func (i Instance) Stage() Stage {
	switch {
	case i.BaseDate == nil:
		return StageDormant
	case i.CompletedAt == nil:
		return StageActive
	default:
		return StageCompleted
	}
}

// Calendar is the business-day arithmetic needed to schedule an instance.
type Calendar interface {
	AddBusinessDays(start time.Time, n int) (time.Time, error)
	BusinessDaysBetween(a, b time.Time) int
}

// Activation is the pair of dates written when a dormant instance starts its clock.
type Activation struct {
	InstanceID uuid.UUID
	BaseDate   time.Time
	Deadline   time.Time
}

// Schedule computes the activation of a dormant instance anchored at baseDate.
func (i Instance) Schedule(cal Calendar, baseDate time.Time) (Activation, error) {
	if i.Stage() != StageDormant {
		return Activation{}, fmt.Errorf("%w: milestone %s is already %s", serrors.ErrInvalidState, i.ID, i.Stage())
	}
	y, m, d := baseDate.Date()
	base := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	deadline, err := cal.AddBusinessDays(base, i.DurationBusinessDays)
	if err != nil {
		return Activation{}, err
	}
	return Activation{InstanceID: i.ID, BaseDate: base, Deadline: deadline}, nil
}

// CanComplete returns an InvalidState error unless the instance is active.
func (i Instance) CanComplete() error {
	switch i.Stage() {
	case StageDormant:
		return fmt.Errorf("%w: milestone %s has not been activated", serrors.ErrInvalidState, i.ID)
	case StageCompleted:
		return fmt.Errorf("%w: milestone %s is already completed", serrors.ErrInvalidState, i.ID)
	}
	return nil
}
