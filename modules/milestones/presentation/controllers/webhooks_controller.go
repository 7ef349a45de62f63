package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/milestone"
	"github.com/iota-uz/recruit-sla/modules/milestones/services"
	"github.com/iota-uz/recruit-sla/pkg/application"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/webhooks"
)

// WebhooksController receives request lifecycle events pushed by the
// recruitment system. Deliveries are signed and deduplicated by the
// webhooks middleware before they reach the handlers.
type WebhooksController struct {
	instances *services.InstanceService
	verifier  webhooks.SignatureVerifier
	protector webhooks.ReplayProtector
	maxBody   int64
	prefix    string
}

func NewWebhooksController(
	app application.Application,
	verifier webhooks.SignatureVerifier,
	protector webhooks.ReplayProtector,
	maxBody int64,
) application.Controller {
	return &WebhooksController{
		instances: app.Service(services.InstanceService{}).(*services.InstanceService),
		verifier:  verifier,
		protector: protector,
		maxBody:   maxBody,
		prefix:    "/webhooks/milestones",
	}
}

func (c *WebhooksController) Key() string {
	return c.prefix
}

func (c *WebhooksController) Register(r *mux.Router) {
	sub := webhooks.Bind(r, c.prefix, c.verifier, c.protector, webhooks.WithMaxBodyBytes(c.maxBody))
	sub.HandleFunc("/request-created", c.RequestCreated).Methods(http.MethodPost)
	sub.HandleFunc("/anchor-event", c.AnchorEvent).Methods(http.MethodPost)
}

type requestCreatedPayload struct {
	RequestID   uuid.UUID `json:"request_id"`
	ServiceType string    `json:"service_type"`
}

func (c *WebhooksController) RequestCreated(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	var p requestCreatedPayload
	if err := decodeJSON(r.Body, &p); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_BODY", "invalid json body")
		return
	}
	created, err := c.instances.InstantiateForRequest(r.Context(), p.RequestID, milestone.ServiceType(p.ServiceType))
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

type anchorEventPayload struct {
	RequestID   uuid.UUID `json:"request_id"`
	AnchorEvent string    `json:"anchor_event"`
	EventDate   string    `json:"event_date"`
}

func (c *WebhooksController) AnchorEvent(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())
	var p anchorEventPayload
	if err := decodeJSON(r.Body, &p); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_BODY", "invalid json body")
		return
	}
	eventDate, err := parseDate(p.EventDate)
	if err != nil || eventDate.IsZero() {
		writeAPIError(w, http.StatusBadRequest, requestID, "MILESTONES_INVALID_BODY", "event_date must be YYYY-MM-DD or RFC3339")
		return
	}
	activated, err := c.instances.ActivateByEvent(r.Context(), p.RequestID, p.AnchorEvent, eventDate)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, activated)
}
