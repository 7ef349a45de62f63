package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

const instanceColumns = `id, template_id, request_id, service_type, name, anchor_event,
	duration_business_days, warn_before_business_days, description, position,
	base_date, deadline, completed_at, created_at`

type InstanceRepository struct{}

func NewInstanceRepository() milestone.InstanceRepository {
	return &InstanceRepository{}
}

func scanInstance(row pgx.Row) (milestone.Instance, error) {
	var (
		inst        milestone.Instance
		serviceType string
		baseDate    pgtype.Date
		deadline    pgtype.Date
		completedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&inst.ID, &inst.TemplateID, &inst.RequestID, &serviceType, &inst.Name, &inst.AnchorEvent,
		&inst.DurationBusinessDays, &inst.WarnBeforeBusinessDays, &inst.Description, &inst.Position,
		&baseDate, &deadline, &completedAt, &inst.CreatedAt,
	)
	if err != nil {
		return milestone.Instance{}, err
	}
	inst.ServiceType = milestone.ServiceType(serviceType)
	inst.BaseDate = datePtr(baseDate)
	inst.Deadline = datePtr(deadline)
	inst.CompletedAt = timestamptzPtr(completedAt)
	return inst, nil
}

func collectInstances(rows pgx.Rows, op string) ([]milestone.Instance, error) {
	defer rows.Close()
	out := make([]milestone.Instance, 0)
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, gerrors.Wrap(err, op)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.Wrap(err, op)
	}
	return out, nil
}

// CreateMany inserts all instances in a single batch round trip.
func (r *InstanceRepository) CreateMany(ctx context.Context, instances []milestone.Instance) ([]milestone.Instance, error) {
	if len(instances) == 0 {
		return []milestone.Instance{}, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	for _, inst := range instances {
		batch.Queue(`INSERT INTO milestone_instances
			(id, template_id, request_id, service_type, name, anchor_event,
			 duration_business_days, warn_before_business_days, description, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING `+instanceColumns,
			inst.ID, inst.TemplateID, inst.RequestID, string(inst.ServiceType), inst.Name, inst.AnchorEvent,
			inst.DurationBusinessDays, inst.WarnBeforeBusinessDays, inst.Description, inst.Position,
		)
	}

	results := tx.SendBatch(ctx, batch)
	out := make([]milestone.Instance, 0, len(instances))
	for range instances {
		inst, err := scanInstance(results.QueryRow())
		if err != nil {
			_ = results.Close()
			return nil, gerrors.Wrap(err, "insert milestone instance")
		}
		out = append(out, inst)
	}
	if err := results.Close(); err != nil {
		return nil, gerrors.Wrap(err, "insert milestone instances")
	}
	return out, nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, id uuid.UUID) (milestone.Instance, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return milestone.Instance{}, err
	}
	inst, err := scanInstance(tx.QueryRow(ctx, `SELECT `+instanceColumns+` FROM milestone_instances WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return milestone.Instance{}, fmt.Errorf("%w: milestone instance %s", serrors.ErrNotFound, id)
	}
	if err != nil {
		return milestone.Instance{}, gerrors.Wrap(err, "get milestone instance")
	}
	return inst, nil
}

func (r *InstanceRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]milestone.Instance, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+instanceColumns+`
		FROM milestone_instances
		WHERE request_id = $1
		ORDER BY position, name, id`, requestID)
	if err != nil {
		return nil, gerrors.Wrap(err, "list milestone instances")
	}
	return collectInstances(rows, "list milestone instances")
}

func (r *InstanceRepository) ListDormantByAnchor(ctx context.Context, requestID uuid.UUID, anchorEvent string) ([]milestone.Instance, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+instanceColumns+`
		FROM milestone_instances
		WHERE request_id = $1 AND anchor_event = $2 AND base_date IS NULL
		ORDER BY position, id`, requestID, anchorEvent)
	if err != nil {
		return nil, gerrors.Wrap(err, "list dormant milestone instances")
	}
	return collectInstances(rows, "list dormant milestone instances")
}

// Activate sets base_date and deadline in one statement. The base_date IS NULL
// guard makes concurrent activations of the same row write it at most once.
func (r *InstanceRepository) Activate(ctx context.Context, activations []milestone.Activation) ([]milestone.Instance, error) {
	if len(activations) == 0 {
		return []milestone.Instance{}, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(activations))
	bases := make([]pgtype.Date, len(activations))
	deadlines := make([]pgtype.Date, len(activations))
	for i, a := range activations {
		ids[i] = a.InstanceID
		bases[i] = pgDateOnlyUTC(a.BaseDate)
		deadlines[i] = pgDateOnlyUTC(a.Deadline)
	}

	rows, err := tx.Query(ctx, `UPDATE milestone_instances AS mi
		SET base_date = a.base_date, deadline = a.deadline
		FROM unnest($1::uuid[], $2::date[], $3::date[]) AS a(id, base_date, deadline)
		WHERE mi.id = a.id AND mi.base_date IS NULL
		RETURNING mi.id, mi.template_id, mi.request_id, mi.service_type, mi.name, mi.anchor_event,
			mi.duration_business_days, mi.warn_before_business_days, mi.description, mi.position,
			mi.base_date, mi.deadline, mi.completed_at, mi.created_at`,
		pgUUIDArray(ids), bases, deadlines,
	)
	if err != nil {
		return nil, gerrors.Wrap(err, "activate milestone instances")
	}
	return collectInstances(rows, "activate milestone instances")
}

func (r *InstanceRepository) Complete(ctx context.Context, id uuid.UUID, at time.Time) (milestone.Instance, bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return milestone.Instance{}, false, err
	}
	inst, err := scanInstance(tx.QueryRow(ctx, `UPDATE milestone_instances
		SET completed_at = $2
		WHERE id = $1 AND base_date IS NOT NULL AND completed_at IS NULL
		RETURNING `+instanceColumns, id, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return milestone.Instance{}, false, nil
	}
	if err != nil {
		return milestone.Instance{}, false, gerrors.Wrap(err, "complete milestone instance")
	}
	return inst, true, nil
}

func (r *InstanceRepository) CountByTemplate(ctx context.Context, templateID uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM milestone_instances WHERE template_id = $1`, templateID).Scan(&n); err != nil {
		return 0, gerrors.Wrap(err, "count milestone instances by template")
	}
	return n, nil
}

func (r *InstanceRepository) ListForDashboard(ctx context.Context, q milestone.DashboardQuery) ([]milestone.Instance, error) {
	var (
		where string
		args  []any
	)
	switch q.Kind {
	case milestone.DashboardOverdue:
		where = `deadline < $1 AND completed_at IS NULL ORDER BY deadline, request_id, position`
		args = append(args, pgDateOnlyUTC(q.Today))
	case milestone.DashboardDueSoon:
		where = `deadline >= $1 AND completed_at IS NULL ORDER BY deadline, request_id, position`
		args = append(args, pgDateOnlyUTC(q.Today))
	case milestone.DashboardDormant:
		where = `base_date IS NULL ORDER BY request_id, position, name`
	case milestone.DashboardCompleted:
		where = `completed_at IS NOT NULL ORDER BY deadline, request_id, position`
	default:
		return nil, fmt.Errorf("%w: unknown dashboard %q", serrors.ErrInvalidArgument, q.Kind)
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+instanceColumns+` FROM milestone_instances WHERE `+where, args...)
	if err != nil {
		return nil, gerrors.Wrap(err, "list dashboard milestone instances")
	}
	return collectInstances(rows, "list dashboard milestone instances")
}
