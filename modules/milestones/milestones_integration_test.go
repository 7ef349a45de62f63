//go:build integration

package milestones_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/recruit-sla/modules/milestones"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/alert"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/events"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	milestonesoutbox "github.com/iota-uz/recruit-sla/modules/milestones/infrastructure/outbox"
	"github.com/iota-uz/recruit-sla/modules/milestones/services"
	"github.com/iota-uz/recruit-sla/pkg/itf"
	"github.com/iota-uz/recruit-sla/pkg/outbox"
)

func TestMilestoneLifecycle_Postgres(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC))
	env := itf.NewTestContext().
		WithModules(milestones.NewModule(&milestones.ModuleOptions{Clock: clock})).
		Build(t)
	ctx, db := env.Ctx, env.DB()

	catalog := itf.GetService[services.CatalogService](env)
	instances := itf.GetService[services.InstanceService](env)
	dashboard := itf.GetService[services.DashboardService](env)

	serviceType := "it-" + uuid.NewString()[:8]
	consultant := "consultant-" + uuid.NewString()[:8]
	requestID := uuid.New()
	_, err := db.Exec(ctx,
		`INSERT INTO recruitment_requests (id, service_type, consultant_id, title, client_name) VALUES ($1, $2, $3, 'CFO search', 'Acme')`,
		requestID, serviceType, consultant)
	require.NoError(t, err)

	for i, dto := range []milestone.CreateTemplateDTO{
		{Name: "Shortlist", AnchorEvent: "kickoff", DurationBusinessDays: 10, WarnBeforeBusinessDays: 3},
		{Name: "Interviews", AnchorEvent: "kickoff", DurationBusinessDays: 14, WarnBeforeBusinessDays: 3},
		{Name: "Onboarding", AnchorEvent: "offer_accepted", DurationBusinessDays: 2, WarnBeforeBusinessDays: 1},
	} {
		dto.ServiceType = serviceType
		dto.Position = i
		_, err := catalog.CreateTemplate(ctx, &dto)
		require.NoError(t, err)
	}

	created, err := instances.InstantiateForRequest(ctx, requestID, milestone.ServiceType(serviceType))
	require.NoError(t, err)
	require.Len(t, created, 3)

	activated, err := instances.ActivateByEvent(ctx, requestID, "kickoff", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, activated, 2)

	again, err := instances.ActivateByEvent(ctx, requestID, "kickoff", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Empty(t, again)

	filter := milestone.DashboardFilter{ConsultantID: consultant}
	overdue, err := dashboard.ListOverdue(ctx, filter)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, "Shortlist", overdue[0].Name)
	require.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), *overdue[0].Deadline)
	require.Equal(t, "2 business days overdue", overdue[0].Message)
	require.Equal(t, "Acme", overdue[0].Request.ClientName)

	dueSoon, err := dashboard.ListDueSoon(ctx, filter)
	require.NoError(t, err)
	require.Len(t, dueSoon, 1)
	require.Equal(t, alert.Warning, dueSoon[0].AlertState)

	dormant, err := dashboard.ListDormant(ctx, filter)
	require.NoError(t, err)
	require.Len(t, dormant, 1)
	require.Equal(t, "Onboarding", dormant[0].Name)

	done, err := instances.Complete(ctx, overdue[0].ID, nil)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)

	_, err = instances.Complete(ctx, overdue[0].ID, nil)
	require.Error(t, err)

	completed, err := dashboard.ListCompleted(ctx, filter)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.True(t, completed[0].CompletedLate)

	_, err = db.Exec(ctx,
		`INSERT INTO request_status_events (request_id, status_code, occurred_at) VALUES ($1, 'PAUSED', $2)`,
		requestID, time.Date(2026, 3, 17, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	dueSoon, err = dashboard.ListDueSoon(ctx, filter)
	require.NoError(t, err)
	require.Empty(t, dueSoon)

	var topics []string
	rows, err := db.Query(ctx, `SELECT topic FROM milestone_outbox WHERE aggregate_id = $1 ORDER BY sequence`, requestID)
	require.NoError(t, err)
	for rows.Next() {
		var topic string
		require.NoError(t, rows.Scan(&topic))
		topics = append(topics, topic)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{
		events.TopicMilestonesInstantiatedV1,
		events.TopicMilestoneActivatedV1,
		events.TopicMilestoneActivatedV1,
		events.TopicMilestoneCompletedV1,
	}, topics)
}

func TestOutboxRelay_DeliversMilestoneEvents(t *testing.T) {
	env := itf.NewTestContext().
		WithModules(milestones.NewModule(nil)).
		Committed().
		Build(t)
	ctx, app, pool := env.Ctx, env.App, env.Pool

	var mu sync.Mutex
	delivered := map[uuid.UUID]string{}
	app.EventPublisher().Subscribe(func(meta *outbox.Meta, ev *events.MilestoneEventV1) error {
		mu.Lock()
		defer mu.Unlock()
		delivered[ev.RequestID] = meta.Topic
		return nil
	})

	requestID := uuid.New()
	serviceType := "it-" + uuid.NewString()[:8]
	_, err := pool.Exec(ctx, `INSERT INTO recruitment_requests (id, service_type) VALUES ($1, $2)`, requestID, serviceType)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM recruitment_requests WHERE id = $1`, requestID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM milestone_templates WHERE service_type = $1`, serviceType)
	})

	_, err = itf.GetService[services.CatalogService](env).CreateTemplate(ctx, &milestone.CreateTemplateDTO{
		ServiceType: serviceType, Name: "Shortlist", AnchorEvent: "kickoff", DurationBusinessDays: 5,
	})
	require.NoError(t, err)
	_, err = itf.GetService[services.InstanceService](env).InstantiateForRequest(ctx, requestID, milestone.ServiceType(serviceType))
	require.NoError(t, err)

	relay, err := outbox.NewRelay(pool, milestones.OutboxTable, milestonesoutbox.NewDispatcher(app.EventPublisher()), outbox.RelayOptions{
		PollInterval: 50 * time.Millisecond,
		SingleActive: false,
	})
	require.NoError(t, err)
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	go func() { _ = relay.Run(runCtx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered[requestID] == events.TopicMilestonesInstantiatedV1
	}, 8*time.Second, 50*time.Millisecond)
}
