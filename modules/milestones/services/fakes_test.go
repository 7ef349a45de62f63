package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/request"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/statushistory"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/outbox"
	"github.com/iota-uz/recruit-sla/pkg/repo"
	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

// fakeTx stands in for an open transaction so composables.InTx joins it.
type fakeTx struct {
	pgx.Tx
}

func txContext() context.Context {
	return composables.WithTx(context.Background(), &fakeTx{})
}

type memTemplates struct {
	mu   sync.Mutex
	rows map[uuid.UUID]milestone.Template
}

func newMemTemplates(ts ...milestone.Template) *memTemplates {
	m := &memTemplates{rows: map[uuid.UUID]milestone.Template{}}
	for _, t := range ts {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		m.rows[t.ID] = t
	}
	return m
}

func (m *memTemplates) ListByServiceType(_ context.Context, st milestone.ServiceType) ([]milestone.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]milestone.Template, 0)
	for _, t := range m.rows {
		if t.ServiceType == st {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memTemplates) ListServiceTypes(context.Context) ([]milestone.ServiceType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[milestone.ServiceType]struct{}{}
	out := make([]milestone.ServiceType, 0)
	for _, t := range m.rows {
		if _, ok := seen[t.ServiceType]; !ok {
			seen[t.ServiceType] = struct{}{}
			out = append(out, t.ServiceType)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memTemplates) GetByID(_ context.Context, id uuid.UUID) (milestone.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return milestone.Template{}, fmt.Errorf("%w: template %s", serrors.ErrNotFound, id)
	}
	return t, nil
}

func (m *memTemplates) Create(_ context.Context, t milestone.Template) (milestone.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.rows[t.ID] = t
	return t, nil
}

func (m *memTemplates) Update(_ context.Context, t milestone.Template) (milestone.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.ID]; !ok {
		return milestone.Template{}, fmt.Errorf("%w: template %s", serrors.ErrNotFound, t.ID)
	}
	m.rows[t.ID] = t
	return t, nil
}

func (m *memTemplates) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("%w: template %s", serrors.ErrNotFound, id)
	}
	delete(m.rows, id)
	return nil
}

// memInstances mirrors the guarded statements of the Postgres repository.
type memInstances struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]milestone.Instance
	order []uuid.UUID
}

func newMemInstances(insts ...milestone.Instance) *memInstances {
	m := &memInstances{rows: map[uuid.UUID]milestone.Instance{}}
	for _, inst := range insts {
		m.rows[inst.ID] = inst
		m.order = append(m.order, inst.ID)
	}
	return m
}

func (m *memInstances) all() []milestone.Instance {
	out := make([]milestone.Instance, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rows[id])
	}
	return out
}

func (m *memInstances) CreateMany(_ context.Context, insts []milestone.Instance) ([]milestone.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]milestone.Instance, 0, len(insts))
	for _, inst := range insts {
		inst.CreatedAt = time.Now().UTC()
		m.rows[inst.ID] = inst
		m.order = append(m.order, inst.ID)
		out = append(out, inst)
	}
	return out, nil
}

func (m *memInstances) GetByID(_ context.Context, id uuid.UUID) (milestone.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.rows[id]
	if !ok {
		return milestone.Instance{}, fmt.Errorf("%w: instance %s", serrors.ErrNotFound, id)
	}
	return inst, nil
}

func (m *memInstances) ListByRequest(_ context.Context, requestID uuid.UUID) ([]milestone.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]milestone.Instance, 0)
	for _, inst := range m.all() {
		if inst.RequestID == requestID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *memInstances) ListDormantByAnchor(_ context.Context, requestID uuid.UUID, anchor string) ([]milestone.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]milestone.Instance, 0)
	for _, inst := range m.all() {
		if inst.RequestID == requestID && inst.AnchorEvent == anchor && inst.BaseDate == nil {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *memInstances) Activate(_ context.Context, plan []milestone.Activation) ([]milestone.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]milestone.Instance, 0, len(plan))
	for _, a := range plan {
		inst, ok := m.rows[a.InstanceID]
		if !ok || inst.BaseDate != nil {
			continue
		}
		base, deadline := a.BaseDate, a.Deadline
		inst.BaseDate, inst.Deadline = &base, &deadline
		m.rows[inst.ID] = inst
		out = append(out, inst)
	}
	return out, nil
}

func (m *memInstances) Complete(_ context.Context, id uuid.UUID, at time.Time) (milestone.Instance, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.rows[id]
	if !ok || inst.BaseDate == nil || inst.CompletedAt != nil {
		return milestone.Instance{}, false, nil
	}
	inst.CompletedAt = &at
	m.rows[id] = inst
	return inst, true, nil
}

func (m *memInstances) CountByTemplate(_ context.Context, templateID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, inst := range m.rows {
		if inst.TemplateID == templateID {
			n++
		}
	}
	return n, nil
}

func (m *memInstances) ListForDashboard(_ context.Context, q milestone.DashboardQuery) ([]milestone.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]milestone.Instance, 0)
	for _, inst := range m.all() {
		var match bool
		switch q.Kind {
		case milestone.DashboardOverdue:
			match = inst.Deadline != nil && inst.Deadline.Before(q.Today) && inst.CompletedAt == nil
		case milestone.DashboardDueSoon:
			match = inst.Deadline != nil && !inst.Deadline.Before(q.Today) && inst.CompletedAt == nil
		case milestone.DashboardDormant:
			match = inst.BaseDate == nil
		case milestone.DashboardCompleted:
			match = inst.CompletedAt != nil
		}
		if match {
			out = append(out, inst)
		}
	}
	return out, nil
}

type memStatusLog struct {
	events []statushistory.Event
	calls  int
}

func (m *memStatusLog) add(requestID uuid.UUID, code statushistory.Code, at time.Time) {
	m.events = append(m.events, statushistory.Event{
		ID:         int64(len(m.events) + 1),
		RequestID:  requestID,
		StatusCode: code,
		OccurredAt: at,
	})
}

func (m *memStatusLog) ListByRequests(_ context.Context, ids []uuid.UUID) ([]statushistory.Event, error) {
	m.calls++
	want := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]statushistory.Event, 0)
	for _, ev := range m.events {
		if _, ok := want[ev.RequestID]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

type memStatusCache struct {
	entries map[uuid.UUID]statushistory.Event
}

func (c *memStatusCache) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]statushistory.Event, error) {
	out := map[uuid.UUID]statushistory.Event{}
	for _, id := range ids {
		if ev, ok := c.entries[id]; ok {
			out[id] = ev
		}
	}
	return out, nil
}

func (c *memStatusCache) SetMany(_ context.Context, evs map[uuid.UUID]statushistory.Event) error {
	for id, ev := range evs {
		c.entries[id] = ev
	}
	return nil
}

func (c *memStatusCache) Invalidate(_ context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		delete(c.entries, id)
	}
	return nil
}

type memDirectory map[uuid.UUID]request.Info

func (d memDirectory) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]request.Info, error) {
	out := map[uuid.UUID]request.Info{}
	for _, id := range ids {
		if info, ok := d[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

type recordingPublisher struct {
	messages []outbox.Message
}

func (p *recordingPublisher) Enqueue(_ context.Context, _ repo.Tx, msg outbox.Message) (int64, error) {
	p.messages = append(p.messages, msg)
	return int64(len(p.messages)), nil
}

func (p *recordingPublisher) topics() []string {
	out := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		out = append(out, m.Topic)
	}
	return out
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
