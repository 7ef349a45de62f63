package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/modules/milestones/domain/statushistory"
	"github.com/iota-uz/recruit-sla/modules/milestones/services"
	"github.com/iota-uz/recruit-sla/pkg/application"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/httpapi"
	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

type MilestonesAPIController struct {
	catalog   *services.CatalogService
	instances *services.InstanceService
	dashboard *services.DashboardService
	statuses  *services.StatusResolver
	apiPrefix string
}

func NewMilestonesAPIController(app application.Application) application.Controller {
	return &MilestonesAPIController{
		catalog:   app.Service(services.CatalogService{}).(*services.CatalogService),
		instances: app.Service(services.InstanceService{}).(*services.InstanceService),
		dashboard: app.Service(services.DashboardService{}).(*services.DashboardService),
		statuses:  app.Service(services.StatusResolver{}).(*services.StatusResolver),
		apiPrefix: "/milestones/api",
	}
}

func (c *MilestonesAPIController) Key() string {
	return c.apiPrefix
}

func (c *MilestonesAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("/templates", c.ListTemplates).Methods(http.MethodGet)
	api.HandleFunc("/templates", c.CreateTemplate).Methods(http.MethodPost)
	api.HandleFunc("/templates/{id}", c.UpdateTemplate).Methods(http.MethodPut)
	api.HandleFunc("/templates/{id}", c.DeleteTemplate).Methods(http.MethodDelete)

	api.HandleFunc("/requests/{id}/milestones", c.Instantiate).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id}/milestones", c.ListByRequest).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}/events", c.Activate).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id}/status", c.GetStatus).Methods(http.MethodGet)

	api.HandleFunc("/instances/{id}/complete", c.Complete).Methods(http.MethodPost)

	api.HandleFunc("/dashboard/{kind}", c.Dashboard).Methods(http.MethodGet)
}

func (c *MilestonesAPIController) ListTemplates(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	serviceType := strings.TrimSpace(r.URL.Query().Get("service_type"))
	if serviceType == "" {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_QUERY", "service_type is required")
		return
	}
	templates, err := c.catalog.TemplatesFor(r.Context(), milestone.ServiceType(serviceType))
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (c *MilestonesAPIController) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	var dto milestone.CreateTemplateDTO
	if err := decodeJSON(r.Body, &dto); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_BODY", "invalid json body")
		return
	}
	created, err := c.catalog.CreateTemplate(r.Context(), &dto)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (c *MilestonesAPIController) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	var dto milestone.UpdateTemplateDTO
	if err := decodeJSON(r.Body, &dto); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_BODY", "invalid json body")
		return
	}
	updated, err := c.catalog.UpdateTemplate(r.Context(), id, &dto)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (c *MilestonesAPIController) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	if err := c.catalog.DeleteTemplate(r.Context(), id); err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type instantiateRequest struct {
	ServiceType string `json:"service_type"`
}

func (c *MilestonesAPIController) Instantiate(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	var req instantiateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_BODY", "invalid json body")
		return
	}
	created, err := c.instances.InstantiateForRequest(r.Context(), id, milestone.ServiceType(req.ServiceType))
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type activateRequest struct {
	AnchorEvent string `json:"anchor_event"`
	EventDate   string `json:"event_date"`
}

func (c *MilestonesAPIController) Activate(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	var req activateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_BODY", "invalid json body")
		return
	}
	eventDate, err := parseDate(req.EventDate)
	if err != nil || eventDate.IsZero() {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_BODY", "event_date must be YYYY-MM-DD or RFC3339")
		return
	}
	activated, err := c.instances.ActivateByEvent(r.Context(), id, req.AnchorEvent, eventDate)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, activated)
}

func (c *MilestonesAPIController) ListByRequest(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	views, err := c.instances.ListByRequest(r.Context(), id)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

type completeRequest struct {
	CompletedAt string `json:"completed_at"`
}

func (c *MilestonesAPIController) Complete(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	var req completeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_BODY", "invalid json body")
			return
		}
	}
	var completedAt *time.Time
	if strings.TrimSpace(req.CompletedAt) != "" {
		at, err := parseDate(req.CompletedAt)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_BODY", "completed_at must be YYYY-MM-DD or RFC3339")
			return
		}
		completedAt = &at
	}
	done, err := c.instances.Complete(r.Context(), id, completedAt)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, done)
}

type statusResponse struct {
	RequestID uuid.UUID            `json:"request_id"`
	Status    *statushistory.Code  `json:"status"`
	Frozen    bool                 `json:"frozen"`
	History   []statusEventPayload `json:"history"`
}

type statusEventPayload struct {
	StatusCode statushistory.Code `json:"status_code"`
	OccurredAt time.Time          `json:"occurred_at"`
	Reason     *string            `json:"reason,omitempty"`
}

func (c *MilestonesAPIController) GetStatus(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}

	var (
		code *statushistory.Code
		err  error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		asOf, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_QUERY", "as_of must be RFC3339")
			return
		}
		code, err = c.statuses.StatusAsOf(r.Context(), id, asOf)
	} else {
		code, err = c.statuses.CurrentStatus(r.Context(), id)
	}
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	history, err := c.statuses.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}

	resp := statusResponse{RequestID: id, Status: code, History: make([]statusEventPayload, 0, len(history))}
	if code != nil {
		resp.Frozen = c.statuses.IsFrozen(*code)
	}
	for _, ev := range history {
		resp.History = append(resp.History, statusEventPayload{StatusCode: ev.StatusCode, OccurredAt: ev.OccurredAt, Reason: ev.Reason})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *MilestonesAPIController) Dashboard(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	kind := milestone.DashboardKind(mux.Vars(r)["kind"])
	if !kind.Valid() {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_QUERY", fmt.Sprintf("unknown dashboard %q", kind))
		return
	}
	views, err := c.dashboard.List(r.Context(), kind, milestone.DashboardFilter{
		ConsultantID: r.URL.Query().Get("consultant"),
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func pathUUID(w http.ResponseWriter, r *http.Request, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_ID", "id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

// parseDate accepts a calendar date or an RFC3339 timestamp.
func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", serrors.ErrInvalidArgument, v)
	}
	return t, nil
}

func decodeJSON(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	_ = httpapi.WriteServiceError(w, requestID, err)
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string) {
	_ = httpapi.WriteError(w, status, requestID, code, message)
}

func writeJSON[T any](w http.ResponseWriter, status int, payload T) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
