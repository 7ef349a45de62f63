package milestone

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/recruit-sla/pkg/constants"
	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

type CreateTemplateDTO struct {
	ServiceType            string `json:"service_type" yaml:"-" validate:"required,max=64"`
	Name                   string `json:"name" yaml:"name" validate:"required,max=255"`
	AnchorEvent            string `json:"anchor_event" yaml:"anchor_event" validate:"required,max=64"`
	DurationBusinessDays   int    `json:"duration_business_days" yaml:"duration_business_days" validate:"gte=0"`
	WarnBeforeBusinessDays int    `json:"warn_before_business_days" yaml:"warn_before_business_days" validate:"gte=0"`
	Description            string `json:"description" yaml:"description" validate:"max=2000"`
	Position               int    `json:"position" yaml:"position" validate:"gte=0"`
}

type UpdateTemplateDTO = CreateTemplateDTO

var templateFieldKeys = map[string]string{
	"ServiceType":            "service_type",
	"Name":                   "name",
	"AnchorEvent":            "anchor_event",
	"DurationBusinessDays":   "duration_business_days",
	"WarnBeforeBusinessDays": "warn_before_business_days",
	"Description":            "description",
	"Position":               "position",
}

func (d *CreateTemplateDTO) Normalize() {
	d.ServiceType = strings.TrimSpace(d.ServiceType)
	d.Name = strings.TrimSpace(d.Name)
	d.AnchorEvent = strings.TrimSpace(d.AnchorEvent)
	d.Description = strings.TrimSpace(d.Description)
}

// Ok normalizes and validates the DTO. A warn window longer than the duration is allowed.
func (d *CreateTemplateDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Normalize()
	err := constants.Validate.Struct(d)
	if err == nil {
		return serrors.ValidationErrors{}, true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return serrors.ValidationErrors{"_": err.Error()}, false
	}
	return serrors.ProcessValidatorErrors(verrs, func(field string) string {
		return templateFieldKeys[field]
	}), false
}

func (d *CreateTemplateDTO) Definition() Definition {
	return Definition{
		ServiceType:            ServiceType(d.ServiceType),
		Name:                   d.Name,
		AnchorEvent:            d.AnchorEvent,
		DurationBusinessDays:   d.DurationBusinessDays,
		WarnBeforeBusinessDays: d.WarnBeforeBusinessDays,
		Description:            d.Description,
		Position:               d.Position,
	}
}
