package persistence

import (
	"context"
	"errors"
	"fmt"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

const templateColumns = `id, service_type, name, anchor_event, duration_business_days,
	warn_before_business_days, description, position, created_at, updated_at`

type TemplateRepository struct{}

func NewTemplateRepository() milestone.TemplateRepository {
	return &TemplateRepository{}
}

func scanTemplate(row pgx.Row) (milestone.Template, error) {
	var t milestone.Template
	var serviceType string
	err := row.Scan(
		&t.ID, &serviceType, &t.Name, &t.AnchorEvent, &t.DurationBusinessDays,
		&t.WarnBeforeBusinessDays, &t.Description, &t.Position, &t.CreatedAt, &t.UpdatedAt,
	)
	t.ServiceType = milestone.ServiceType(serviceType)
	return t, err
}

func (r *TemplateRepository) ListByServiceType(ctx context.Context, serviceType milestone.ServiceType) ([]milestone.Template, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+templateColumns+`
		FROM milestone_templates
		WHERE service_type = $1
		ORDER BY position, name, id`, string(serviceType))
	if err != nil {
		return nil, gerrors.Wrap(err, "list milestone templates")
	}
	defer rows.Close()

	out := make([]milestone.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, gerrors.Wrap(err, "scan milestone template")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TemplateRepository) ListServiceTypes(ctx context.Context) ([]milestone.ServiceType, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT DISTINCT service_type FROM milestone_templates ORDER BY service_type`)
	if err != nil {
		return nil, gerrors.Wrap(err, "list service types")
	}
	defer rows.Close()

	var out []milestone.ServiceType
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, gerrors.Wrap(err, "scan service type")
		}
		out = append(out, milestone.ServiceType(s))
	}
	return out, rows.Err()
}

func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (milestone.Template, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return milestone.Template{}, err
	}
	t, err := scanTemplate(tx.QueryRow(ctx, `SELECT `+templateColumns+` FROM milestone_templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return milestone.Template{}, fmt.Errorf("%w: milestone template %s", serrors.ErrNotFound, id)
	}
	if err != nil {
		return milestone.Template{}, gerrors.Wrap(err, "get milestone template")
	}
	return t, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t milestone.Template) (milestone.Template, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return milestone.Template{}, err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	created, err := scanTemplate(tx.QueryRow(ctx, `INSERT INTO milestone_templates
		(id, service_type, name, anchor_event, duration_business_days, warn_before_business_days, description, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+templateColumns,
		t.ID, string(t.ServiceType), t.Name, t.AnchorEvent, t.DurationBusinessDays,
		t.WarnBeforeBusinessDays, t.Description, t.Position,
	))
	if err != nil {
		return milestone.Template{}, gerrors.Wrap(err, "create milestone template")
	}
	return created, nil
}

func (r *TemplateRepository) Update(ctx context.Context, t milestone.Template) (milestone.Template, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return milestone.Template{}, err
	}
	updated, err := scanTemplate(tx.QueryRow(ctx, `UPDATE milestone_templates SET
		service_type = $2, name = $3, anchor_event = $4, duration_business_days = $5,
		warn_before_business_days = $6, description = $7, position = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+templateColumns,
		t.ID, string(t.ServiceType), t.Name, t.AnchorEvent, t.DurationBusinessDays,
		t.WarnBeforeBusinessDays, t.Description, t.Position,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return milestone.Template{}, fmt.Errorf("%w: milestone template %s", serrors.ErrNotFound, t.ID)
	}
	if err != nil {
		return milestone.Template{}, gerrors.Wrap(err, "update milestone template")
	}
	return updated, nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM milestone_templates WHERE id = $1`, id)
	if err != nil {
		return gerrors.Wrap(err, "delete milestone template")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: milestone template %s", serrors.ErrNotFound, id)
	}
	return nil
}
