package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/pam-core/internal/audit"
	"github.com/p-blackswan/pam-core/internal/health"
	"github.com/p-blackswan/pam-core/internal/pam"
	"github.com/p-blackswan/pam-core/internal/pamerr"
)

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// Handlers holds dependencies for the HTTP handlers.
type Handlers struct {
	mgr       *pam.Manager
	sink      *audit.MemorySink
	checker   *health.Checker
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(mgr *pam.Manager, sink *audit.MemorySink, checker *health.Checker, logger zerolog.Logger) *Handlers {
	return &Handlers{
		mgr:       mgr,
		sink:      sink,
		checker:   checker,
		logger:    logger.With().Str("component", "handlers").Logger(),
		startTime: time.Now(),
	}
}

func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}

// pamError maps the core error taxonomy onto HTTP problem responses.
func pamError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pamerr.ErrValidation):
		return problemResponse(c, fiber.StatusBadRequest, "validation_failed", "Bad Request", err.Error())
	case errors.Is(err, pamerr.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, pamerr.ErrAuthorization):
		return problemResponse(c, fiber.StatusForbidden, "not_authorized", "Forbidden", err.Error())
	case errors.Is(err, pamerr.ErrState):
		return problemResponse(c, fiber.StatusConflict, "invalid_state", "Conflict", err.Error())
	case errors.Is(err, pamerr.ErrExpired):
		return problemResponse(c, fiber.StatusGone, "expired", "Gone", err.Error())
	case errors.Is(err, pamerr.ErrFeatureDisabled):
		return problemResponse(c, fiber.StatusForbidden, "feature_disabled", "Forbidden", err.Error())
	case errors.Is(err, pamerr.ErrConfiguration):
		return problemResponse(c, fiber.StatusInternalServerError, "configuration_error", "Internal Server Error", err.Error())
	default:
		return problemResponse(c, fiber.StatusInternalServerError, "internal_error", "Internal Server Error", err.Error())
	}
}

// requestAccessBody mirrors the facade's requestAccess input.
type requestAccessBody struct {
	UserID          string `json:"userId"`
	RoleID          string `json:"roleId"`
	Justification   string `json:"justification"`
	Duration        int    `json:"duration,omitempty"`
	RequestedFor    string `json:"requestedFor,omitempty"`
	EmergencyAccess bool   `json:"emergencyAccess,omitempty"`
}

// RequestAccess handles POST /api/v1/requests.
func (h *Handlers) RequestAccess(c *fiber.Ctx) error {
	var body requestAccessBody
	if err := c.BodyParser(&body); err != nil {
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
	}

	req, err := h.mgr.RequestAccess(c.Context(), pam.AccessParams{
		UserID:        callerOr(c, body.UserID),
		RoleID:        body.RoleID,
		Justification: body.Justification,
		Duration:      body.Duration,
		RequestedFor:  body.RequestedFor,
		Emergency:     body.EmergencyAccess,
	})
	if err != nil {
		return pamError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// GetRequest handles GET /api/v1/requests/:id.
func (h *Handlers) GetRequest(c *fiber.Ctx) error {
	req, err := h.mgr.GetRequest(c.Params("id"))
	if err != nil {
		return pamError(c, err)
	}
	return c.JSON(req)
}

type decisionBody struct {
	ApproverID string `json:"approverId"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason,omitempty"`
}

// DecideRequest handles POST /api/v1/requests/:id/decision.
func (h *Handlers) DecideRequest(c *fiber.Ctx) error {
	var body decisionBody
	if err := c.BodyParser(&body); err != nil {
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
	}

	req, err := h.mgr.DecideRequest(c.Context(), c.Params("id"),
		callerOr(c, body.ApproverID), pam.ReviewDecision(body.Decision), body.Reason)
	if err != nil {
		return pamError(c, err)
	}
	return c.JSON(req)
}

type activateBody struct {
	UserID string `json:"userId"`
}

// ActivateSession handles POST /api/v1/requests/:id/activate.
func (h *Handlers) ActivateSession(c *fiber.Ctx) error {
	var body activateBody
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
	}

	session, err := h.mgr.ActivateSession(c.Context(), c.Params("id"), callerOr(c, body.UserID))
	if err != nil {
		return pamError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

type checkBody struct {
	UserID   string         `json:"userId"`
	Resource string         `json:"resource"`
	Action   string         `json:"action"`
	Context  map[string]any `json:"context,omitempty"`
}

// CheckPermission handles POST /api/v1/permissions/check.
func (h *Handlers) CheckPermission(c *fiber.Ctx) error {
	var body checkBody
	if err := c.BodyParser(&body); err != nil {
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
	}

	decision := h.mgr.CheckPermission(c.Context(),
		callerOr(c, body.UserID), body.Resource, body.Action, body.Context)
	return c.JSON(decision)
}

// ListActiveSessions handles GET /api/v1/sessions?userId=.
func (h *Handlers) ListActiveSessions(c *fiber.Ctx) error {
	userID := callerOr(c, c.Query("userId"))
	sessions := h.mgr.ListActiveSessions(c.Context(), userID)
	if sessions == nil {
		sessions = []pam.Session{}
	}
	return c.JSON(sessions)
}

// GetSession handles GET /api/v1/sessions/:id.
func (h *Handlers) GetSession(c *fiber.Ctx) error {
	session, err := h.mgr.GetSession(c.Params("id"))
	if err != nil {
		return pamError(c, err)
	}
	return c.JSON(session)
}

type activityBody struct {
	Action   string         `json:"action"`
	Resource string         `json:"resource"`
	Details  map[string]any `json:"details,omitempty"`
}

// RecordActivity handles POST /api/v1/sessions/:id/activities. Always 202:
// recording never fails back into the calling operation.
func (h *Handlers) RecordActivity(c *fiber.Ctx) error {
	var body activityBody
	if err := c.BodyParser(&body); err != nil {
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
	}

	h.mgr.RecordActivity(c.Context(), c.Params("id"), body.Action, body.Resource, body.Details)
	return c.SendStatus(fiber.StatusAccepted)
}

type revokeBody struct {
	Reason string `json:"reason"`
}

// RevokeSession handles POST /api/v1/sessions/:id/revoke.
func (h *Handlers) RevokeSession(c *fiber.Ctx) error {
	var body revokeBody
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
	}
	if body.Reason == "" {
		body.Reason = "Revoked via API"
	}

	h.mgr.RevokeSession(c.Context(), c.Params("id"), body.Reason)
	return c.SendStatus(fiber.StatusNoContent)
}

type emergencyBody struct {
	UserID        string `json:"userId"`
	Justification string `json:"justification"`
	Incident      string `json:"incident,omitempty"`
}

// RequestEmergencyAccess handles POST /api/v1/emergency.
func (h *Handlers) RequestEmergencyAccess(c *fiber.Ctx) error {
	var body emergencyBody
	if err := c.BodyParser(&body); err != nil {
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
	}

	req, err := h.mgr.RequestEmergencyAccess(c.Context(),
		callerOr(c, body.UserID), body.Justification, body.Incident)
	if err != nil {
		return pamError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// ListRoles handles GET /api/v1/roles.
func (h *Handlers) ListRoles(c *fiber.Ctx) error {
	return c.JSON(h.mgr.Catalog().List())
}

// ListAuditEvents handles GET /api/v1/audit?userId=&limit=.
func (h *Handlers) ListAuditEvents(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	events := h.sink.GetEntries(c.Query("userId"), limit)
	if events == nil {
		events = []audit.Event{}
	}
	return c.JSON(events)
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(h.startTime).String(),
	})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
				"checks": results,
			})
		}
	}
	return c.JSON(fiber.Map{
		"status": "ready",
		"checks": results,
	})
}

// callerOr prefers the explicit body/query value, falling back to the
// authenticated caller id extracted from the bearer token in jwt mode.
func callerOr(c *fiber.Ctx, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if id, ok := c.Locals("caller_id").(string); ok {
		return id
	}
	return ""
}
