package milestone

import (
	"time"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/alert"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/request"
)

// View is an instance decorated with read-time alert data.
type View struct {
	Instance
	Stage                 Stage         `json:"stage"`
	BusinessDaysRemaining *int          `json:"business_days_remaining"`
	AlertState            alert.State   `json:"alert_state"`
	Message               string        `json:"message"`
	CompletedLate         bool          `json:"completed_late"`
	Request               *request.Info `json:"request,omitempty"`
}

// NewView computes alert data as of today. Only dormant instances have no
// remaining count; completed ones keep the distance to their deadline.
func NewView(cal Calendar, inst Instance, today time.Time) View {
	return View{
		Instance:              inst,
		Stage:                 inst.Stage(),
		BusinessDaysRemaining: alert.Remaining(cal, inst.Deadline, today),
		AlertState:            alert.Classify(cal, inst.Deadline, inst.CompletedAt, inst.WarnBeforeBusinessDays, today),
		Message:               alert.Describe(cal, inst.Deadline, inst.CompletedAt, today),
		CompletedLate:         alert.CompletedLate(inst.Deadline, inst.CompletedAt),
	}
}
