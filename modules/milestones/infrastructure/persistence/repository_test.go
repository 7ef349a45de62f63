package persistence

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/statushistory"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

func instanceRow(inst milestone.Instance) []any {
	date := func(t *time.Time) any {
		if t == nil {
			return pgtype.Date{}
		}
		return pgtype.Date{Time: *t, Valid: true}
	}
	completed := pgtype.Timestamptz{}
	if inst.CompletedAt != nil {
		completed = pgtype.Timestamptz{Time: *inst.CompletedAt, Valid: true}
	}
	return []any{
		inst.ID, inst.TemplateID, inst.RequestID, string(inst.ServiceType), inst.Name, inst.AnchorEvent,
		inst.DurationBusinessDays, inst.WarnBeforeBusinessDays, inst.Description, inst.Position,
		date(inst.BaseDate), date(inst.Deadline), completed, inst.CreatedAt,
	}
}

func sampleInstance() milestone.Instance {
	return milestone.Instance{
		ID:         uuid.New(),
		TemplateID: uuid.New(),
		RequestID:  uuid.New(),
		Definition: milestone.Definition{
			ServiceType:            "PERMANENT",
			Name:                   "Shortlist",
			AnchorEvent:            "contract_signed",
			DurationBusinessDays:   10,
			WarnBeforeBusinessDays: 2,
			Position:               1,
		},
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestInstanceRepository_GetByID_NotFound(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return stubRow{err: pgx.ErrNoRows}
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	_, err := NewInstanceRepository().GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, serrors.ErrNotFound)
}

func TestInstanceRepository_GetByID_ScansDates(t *testing.T) {
	inst := sampleInstance()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	deadline := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	inst.BaseDate, inst.Deadline = &base, &deadline

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Equal(t, inst.ID, args[0])
			return stubRow{values: instanceRow(inst)}
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	got, err := NewInstanceRepository().GetByID(ctx, inst.ID)
	require.NoError(t, err)
	require.Equal(t, milestone.StageActive, got.Stage())
	require.Equal(t, base, *got.BaseDate)
	require.Equal(t, deadline, *got.Deadline)
	require.Nil(t, got.CompletedAt)
	require.Equal(t, milestone.ServiceType("PERMANENT"), got.ServiceType)
}

func TestInstanceRepository_CreateMany_UsesOneBatch(t *testing.T) {
	a, b := sampleInstance(), sampleInstance()
	batch := &stubBatch{rows: []stubRow{{values: instanceRow(a)}, {values: instanceRow(b)}}}
	var queued int
	tx := &stubTx{
		batchFunc: func(ctx context.Context, pb *pgx.Batch) pgx.BatchResults {
			queued = pb.Len()
			return batch
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	got, err := NewInstanceRepository().CreateMany(ctx, []milestone.Instance{a, b})
	require.NoError(t, err)
	require.Equal(t, 2, queued)
	require.True(t, batch.closed)
	require.Len(t, got, 2)
	require.Equal(t, a.ID, got[0].ID)
	require.Equal(t, milestone.StageDormant, got[1].Stage())
}

func TestInstanceRepository_CreateMany_Empty(t *testing.T) {
	got, err := NewInstanceRepository().CreateMany(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestInstanceRepository_Activate_GuardsDormantRows(t *testing.T) {
	inst := sampleInstance()
	base := time.Date(2026, 3, 6, 15, 30, 0, 0, time.UTC)
	deadline := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	var gotSQL string
	var gotArgs []any
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			gotSQL, gotArgs = sql, args
			activated := inst
			bd := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
			activated.BaseDate, activated.Deadline = &bd, &deadline
			return &stubRows{data: [][]any{instanceRow(activated)}}, nil
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	got, err := NewInstanceRepository().Activate(ctx, []milestone.Activation{{
		InstanceID: inst.ID, BaseDate: base, Deadline: deadline,
	}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Contains(t, gotSQL, "mi.base_date IS NULL")
	require.Len(t, gotArgs, 3)
	bases := gotArgs[1].([]pgtype.Date)
	require.Equal(t, time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), bases[0].Time)
}

func TestInstanceRepository_Complete_NoMatch(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "completed_at IS NULL")
			return stubRow{err: pgx.ErrNoRows}
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	_, ok, err := NewInstanceRepository().Complete(ctx, uuid.New(), time.Now())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInstanceRepository_ListForDashboard(t *testing.T) {
	today := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	cases := []struct {
		kind     milestone.DashboardKind
		contains string
		args     int
	}{
		{milestone.DashboardOverdue, "deadline < $1 AND completed_at IS NULL", 1},
		{milestone.DashboardDueSoon, "deadline >= $1 AND completed_at IS NULL", 1},
		{milestone.DashboardDormant, "base_date IS NULL", 0},
		{milestone.DashboardCompleted, "completed_at IS NOT NULL", 0},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			tx := &stubTx{
				queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
					require.Contains(t, sql, tc.contains)
					require.Len(t, args, tc.args)
					if tc.args == 1 {
						require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), args[0].(pgtype.Date).Time)
					}
					return &stubRows{}, nil
				},
			}
			ctx := composables.WithTx(context.Background(), tx)
			got, err := NewInstanceRepository().ListForDashboard(ctx, milestone.DashboardQuery{Kind: tc.kind, Today: today})
			require.NoError(t, err)
			require.Empty(t, got)
		})
	}

	_, err := NewInstanceRepository().ListForDashboard(context.Background(), milestone.DashboardQuery{Kind: "late"})
	require.ErrorIs(t, err, serrors.ErrInvalidArgument)
}

func TestStatusEventRepository_NormalizesCodes(t *testing.T) {
	requestID := uuid.New()
	reason := "client on hold"
	at := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.True(t, strings.Contains(sql, "request_id = ANY($1)"))
			return &stubRows{data: [][]any{
				{int64(1), requestID, " paused ", at, &reason},
			}}, nil
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	got, err := NewStatusEventRepository().ListByRequests(ctx, []uuid.UUID{requestID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, statushistory.Paused, got[0].StatusCode)
	require.Equal(t, "client on hold", *got[0].Reason)
}

func TestRequestDirectory_GetMany(t *testing.T) {
	id := uuid.New()
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &stubRows{data: [][]any{
				{id, "PERMANENT", "C-7", "Head of Data", "Acme"},
			}}, nil
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	got, err := NewRequestDirectory().GetMany(ctx, []uuid.UUID{id, uuid.New()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Acme", got[id].ClientName)
}

func TestTemplateRepository_Delete_NotFound(t *testing.T) {
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	err := NewTemplateRepository().Delete(ctx, uuid.New())
	require.ErrorIs(t, err, serrors.ErrNotFound)
}

func TestTemplateRepository_ListByServiceType(t *testing.T) {
	id := uuid.New()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "ORDER BY position, name, id")
			require.Equal(t, "PERMANENT", args[0])
			return &stubRows{data: [][]any{
				{id, "PERMANENT", "Kick-off call", "contract_signed", 2, 1, "", 0, now, now},
			}}, nil
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	got, err := NewTemplateRepository().ListByServiceType(ctx, "PERMANENT")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Kick-off call", got[0].Name)
	require.Equal(t, 2, got[0].DurationBusinessDays)
}
