package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

// CatalogService manages milestone templates. Template changes never reach
// instances that were already copied from them.
type CatalogService struct {
	templates milestone.TemplateRepository
	instances milestone.InstanceRepository
	inTx      txRunner
}

func NewCatalogService(templates milestone.TemplateRepository, instances milestone.InstanceRepository) *CatalogService {
	return &CatalogService{templates: templates, instances: instances, inTx: composables.InTx}
}

func (s *CatalogService) TemplatesFor(ctx context.Context, serviceType milestone.ServiceType) ([]milestone.Template, error) {
	return s.templates.ListByServiceType(ctx, milestone.ServiceType(strings.TrimSpace(string(serviceType))))
}

func (s *CatalogService) ServiceTypes(ctx context.Context) ([]milestone.ServiceType, error) {
	return s.templates.ListServiceTypes(ctx)
}

func (s *CatalogService) GetTemplate(ctx context.Context, id uuid.UUID) (milestone.Template, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *CatalogService) CreateTemplate(ctx context.Context, dto *milestone.CreateTemplateDTO) (milestone.Template, error) {
	if verrs, ok := dto.Ok(); !ok {
		return milestone.Template{}, verrs
	}
	var created milestone.Template
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.templates.Create(txCtx, milestone.Template{Definition: dto.Definition()})
		return err
	})
	if err != nil {
		return milestone.Template{}, mapPgError("create milestone template", err)
	}
	logWithFields(ctx, logrus.InfoLevel, "milestone template created", logrus.Fields{
		"template_id":  created.ID,
		"service_type": created.ServiceType,
	})
	return created, nil
}

func (s *CatalogService) UpdateTemplate(ctx context.Context, id uuid.UUID, dto *milestone.UpdateTemplateDTO) (milestone.Template, error) {
	if verrs, ok := dto.Ok(); !ok {
		return milestone.Template{}, verrs
	}
	var updated milestone.Template
	err := s.inTx(ctx, func(txCtx context.Context) error {
		existing, err := s.templates.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		existing.Definition = dto.Definition()
		updated, err = s.templates.Update(txCtx, existing)
		return err
	})
	if err != nil {
		return milestone.Template{}, mapPgError("update milestone template", err)
	}
	return updated, nil
}

// DeleteTemplate refuses to remove a template that any instance was copied from.
func (s *CatalogService) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	err := s.inTx(ctx, func(txCtx context.Context) error {
		if _, err := s.templates.GetByID(txCtx, id); err != nil {
			return err
		}
		n, err := s.instances.CountByTemplate(txCtx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: template %s has %d milestone instances", serrors.ErrInvalidState, id, n)
		}
		return s.templates.Delete(txCtx, id)
	})
	if err != nil {
		logWithFields(ctx, logrus.WarnLevel, "milestone template delete rejected", logrus.Fields{
			"template_id": id,
			"error":       err.Error(),
		})
		return mapPgError("delete milestone template", err)
	}
	return nil
}

type catalogFile struct {
	ServiceTypes map[string][]milestone.CreateTemplateDTO `yaml:"service_types"`
}

// SeedFromYAML creates every template of a catalog file in one transaction:
//
//	service_types:
//	  full-process:
//	    - name: Shortlist presented
//	      anchor_event: kickoff
//	      duration_business_days: 10
//	      warn_before_business_days: 2
//
// Entries without a position take their list index. Nothing is written when
// any entry is invalid.
func (s *CatalogService) SeedFromYAML(ctx context.Context, r io.Reader) ([]milestone.Template, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: catalog file: %w", serrors.ErrInvalidArgument, err)
	}

	codes := make([]string, 0, len(file.ServiceTypes))
	for code := range file.ServiceTypes {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	dtos := make([]*milestone.CreateTemplateDTO, 0)
	verrs := serrors.ValidationErrors{}
	for _, code := range codes {
		for i := range file.ServiceTypes[code] {
			dto := file.ServiceTypes[code][i]
			dto.ServiceType = code
			if dto.Position == 0 {
				dto.Position = i
			}
			if errs, ok := dto.Ok(); !ok {
				for field, msg := range errs {
					verrs[fmt.Sprintf("%s[%d].%s", code, i, field)] = msg
				}
				continue
			}
			dtos = append(dtos, &dto)
		}
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	out := make([]milestone.Template, 0, len(dtos))
	err := s.inTx(ctx, func(txCtx context.Context) error {
		for _, dto := range dtos {
			created, err := s.templates.Create(txCtx, milestone.Template{Definition: dto.Definition()})
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, mapPgError("seed milestone catalog", err)
	}
	logWithFields(ctx, logrus.InfoLevel, "milestone catalog seeded", logrus.Fields{
		"service_types": len(codes),
		"templates":     len(out),
	})
	return out, nil
}
