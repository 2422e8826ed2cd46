package pam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/pam-core/internal/audit"
	"github.com/p-blackswan/pam-core/internal/metrics"
	"github.com/p-blackswan/pam-core/internal/pamerr"
)

// ApprovalNotifier is the injected collaborator invoked when a request
// transitions to pending. Calls are fire-and-forget: a failure is logged and
// never rolls back the pending state.
type ApprovalNotifier interface {
	InitiateApproval(ctx context.Context, req AccessRequest, role PrivilegedRole) error
}

// Config holds the PAM core policy knobs.
type Config struct {
	MinJustificationLength int           // request intake validation
	DefaultMaxDuration     int           // minutes; system-wide duration ceiling
	EmergencyDuration      int           // minutes; fixed break-glass duration
	WarningThreshold       time.Duration // time remaining that triggers a time_warning
	SweepInterval          time.Duration
	AutoRevokeOnSuspicious bool
	BreakGlassEnabled      bool
}

// DefaultConfig returns the standard policy configuration.
func DefaultConfig() Config {
	return Config{
		MinJustificationLength: 10,
		DefaultMaxDuration:     480,
		EmergencyDuration:      60,
		WarningThreshold:       15 * time.Minute,
		SweepInterval:          time.Minute,
		AutoRevokeOnSuspicious: true,
		BreakGlassEnabled:      true,
	}
}

// Manager is the PAM facade. It exclusively owns the request and session
// collections; roles are shared read-only data resolved through the catalog.
type Manager struct {
	cfg      Config
	catalog  *Catalog
	requests *requestStore
	sessions *sessionStore
	notifier ApprovalNotifier
	audit    *audit.Recorder
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock injects a clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates the facade.
func NewManager(cfg Config, catalog *Catalog, notifier ApprovalNotifier, rec *audit.Recorder, met *metrics.Metrics, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		catalog:  catalog,
		requests: newRequestStore(),
		sessions: newSessionStore(logger),
		notifier: notifier,
		audit:    rec,
		metrics:  met,
		logger:   logger.With().Str("component", "pam").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the role catalog.
func (m *Manager) Catalog() *Catalog { return m.catalog }

// AccessParams is the input to RequestAccess.
type AccessParams struct {
	UserID        string
	RoleID        string
	Justification string
	Duration      int // minutes; 0 means the role maximum (capped at the system default)
	RequestedFor  string
	Emergency     bool
}

// RequestAccess validates and creates an access request. Requests needing
// approval become pending and engage the approval notifier; everything else
// is auto-approved immediately.
func (m *Manager) RequestAccess(ctx context.Context, p AccessParams) (AccessRequest, error) {
	if p.UserID == "" {
		return AccessRequest{}, pamerr.NewValidation("userId", "required", "userId must not be empty")
	}
	if len(p.Justification) < m.cfg.MinJustificationLength {
		return AccessRequest{}, pamerr.NewValidation("justification", "min_length",
			fmt.Sprintf("justification must be at least %d characters", m.cfg.MinJustificationLength))
	}
	if p.Duration > m.cfg.DefaultMaxDuration {
		return AccessRequest{}, pamerr.NewValidation("duration", "max_duration",
			fmt.Sprintf("duration %d exceeds maximum %d minutes", p.Duration, m.cfg.DefaultMaxDuration))
	}

	role, err := m.catalog.Get(p.RoleID)
	if err != nil {
		return AccessRequest{}, err
	}

	duration := p.Duration
	if duration <= 0 {
		duration = role.MaxDuration
		if duration > m.cfg.DefaultMaxDuration {
			duration = m.cfg.DefaultMaxDuration
		}
	}

	now := m.now()
	req := &AccessRequest{
		ID:              uuid.New().String(),
		UserID:          p.UserID,
		RoleID:          p.RoleID,
		Justification:   p.Justification,
		RequestedAt:     now,
		RequestedFor:    p.RequestedFor,
		Duration:        duration,
		EmergencyAccess: p.Emergency,
		RiskAssessment:  AssessRequest(role, duration, p.Emergency, m.cfg.DefaultMaxDuration),
	}

	needsApproval := role.RequiresApproval || p.Emergency ||
		req.RiskAssessment.Level == RiskHigh || req.RiskAssessment.Level == RiskCritical

	if needsApproval {
		req.Status = StatusPending
	} else {
		req.Status = StatusApproved
		approvedAt := now
		expiresAt := now.Add(time.Duration(duration) * time.Minute)
		req.ApprovedAt = &approvedAt
		req.ApprovedBy = "auto"
		req.ExpiresAt = &expiresAt
	}

	m.requests.add(req)
	snapshot := *req

	m.metrics.RecordRequest(string(req.Status))
	m.emit(audit.Event{
		Event:     audit.EventRequestCreated,
		UserID:    req.UserID,
		RequestID: req.ID,
		RoleID:    req.RoleID,
		Outcome:   string(req.Status),
		Details: map[string]any{
			"duration":  req.Duration,
			"riskScore": req.RiskAssessment.Score,
			"riskLevel": string(req.RiskAssessment.Level),
			"emergency": req.EmergencyAccess,
		},
	})

	if needsApproval {
		m.notifyApproval(snapshot, role)
		m.logger.Info().
			Str("request_id", req.ID).
			Str("user_id", req.UserID).
			Str("role_id", req.RoleID).
			Int("risk_score", req.RiskAssessment.Score).
			Msg("access request pending approval")
	} else {
		m.logger.Info().
			Str("request_id", req.ID).
			Str("user_id", req.UserID).
			Str("role_id", req.RoleID).
			Msg("access request auto-approved")
	}

	return snapshot, nil
}

// notifyApproval hands a pending request to the notifier without blocking
// the caller. Notifier failures are logged and swallowed.
func (m *Manager) notifyApproval(req AccessRequest, role PrivilegedRole) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.notifier.InitiateApproval(ctx, req, role); err != nil {
			m.logger.Warn().Err(err).Str("request_id", req.ID).Msg("approval notification failed")
		}
	}()
}

// DecideRequest records an approver's verdict on a pending request. A second
// decision on the same request fails with a state error regardless of the
// verdict, preventing double-approval races.
func (m *Manager) DecideRequest(ctx context.Context, requestID, approverID string, decision ReviewDecision, reason string) (AccessRequest, error) {
	if decision != DecisionApproved && decision != DecisionDenied {
		return AccessRequest{}, pamerr.NewValidation("decision", "enum",
			fmt.Sprintf("decision must be %q or %q", DecisionApproved, DecisionDenied))
	}

	role, roleErr := PrivilegedRole{}, error(nil)

	err := m.requests.update(requestID, func(req *AccessRequest) error {
		if req.Status != StatusPending {
			return pamerr.NewState("request", requestID, string(req.Status), "decide")
		}
		role, roleErr = m.catalog.Get(req.RoleID)
		if roleErr != nil {
			return roleErr
		}
		if !role.HasApprover(approverID) {
			return pamerr.NewAuthorization(approverID, "decide",
				fmt.Sprintf("not an approver for role %s", req.RoleID))
		}

		now := m.now()
		req.ApprovedBy = approverID
		req.ApprovedAt = &now
		req.DecisionReason = reason
		if decision == DecisionApproved {
			req.Status = StatusApproved
			expiresAt := now.Add(time.Duration(req.Duration) * time.Minute)
			req.ExpiresAt = &expiresAt
		} else {
			req.Status = StatusDenied
		}
		return nil
	})
	if errors.Is(err, errRequestMissing) {
		return AccessRequest{}, pamerr.NewNotFound("request", requestID)
	}
	if err != nil {
		return AccessRequest{}, err
	}

	snapshot, _ := m.requests.snapshot(requestID)

	m.metrics.RecordDecision(string(decision))
	m.emit(audit.Event{
		Event:     audit.EventRequestDecided,
		UserID:    snapshot.UserID,
		RequestID: requestID,
		RoleID:    snapshot.RoleID,
		Outcome:   string(decision),
		Details:   map[string]any{"approver": approverID, "reason": reason},
	})

	m.logger.Info().
		Str("request_id", requestID).
		Str("approver", approverID).
		Str("decision", string(decision)).
		Msg("access request decided")

	return snapshot, nil
}

// ActivateSession converts an approved, unexpired request into a live
// session. A request activates at most once; the permission snapshot is
// frozen from the role at this instant.
func (m *Manager) ActivateSession(ctx context.Context, requestID, userID string) (Session, error) {
	if userID == "" {
		return Session{}, pamerr.NewValidation("userId", "required", "userId must not be empty")
	}
	now := m.now()
	var base AccessRequest

	err := m.requests.update(requestID, func(req *AccessRequest) error {
		if req.UserID != userID {
			return pamerr.NewAuthorization(userID, "activate",
				fmt.Sprintf("request %s belongs to another user", requestID))
		}
		if req.Status != StatusApproved {
			return pamerr.NewState("request", requestID, string(req.Status), "activate")
		}
		if req.ExpiresAt == nil || !req.ExpiresAt.After(now) {
			req.Status = StatusExpired
			return pamerr.NewExpired("request", requestID)
		}
		req.Status = StatusActivated
		base = *req
		return nil
	})
	if errors.Is(err, errRequestMissing) {
		return Session{}, pamerr.NewNotFound("request", requestID)
	}
	if err != nil {
		return Session{}, err
	}

	role, err := m.catalog.Get(base.RoleID)
	if err != nil {
		return Session{}, err
	}

	s := Session{
		ID:               uuid.New().String(),
		UserID:           base.UserID,
		RoleID:           base.RoleID,
		RequestID:        base.ID,
		StartTime:        now,
		ExpiresAt:        *base.ExpiresAt,
		Permissions:      clonePermissions(role.Permissions),
		MonitoringActive: true,
		Activities:       []Activity{},
		Warnings:         []SessionWarning{},
	}
	ls := m.sessions.add(s)

	m.metrics.ActiveSessions.Set(float64(m.sessions.liveCount()))
	m.emit(audit.Event{
		Event:     audit.EventSessionActivated,
		UserID:    s.UserID,
		RequestID: s.RequestID,
		SessionID: s.ID,
		RoleID:    s.RoleID,
		Details:   map[string]any{"expiresAt": s.ExpiresAt},
	})

	m.logger.Info().
		Str("session_id", s.ID).
		Str("request_id", s.RequestID).
		Str("user_id", s.UserID).
		Time("expires_at", s.ExpiresAt).
		Msg("privileged session activated")

	return ls.snapshot(), nil
}

// CheckPermission answers whether userID may perform action on resource
// right now. It scans the user's live sessions for the first permission
// whose pattern, action list, and conditions all match. Pure read aside
// from the audit emission.
func (m *Manager) CheckPermission(ctx context.Context, userID, resource, action string, evalCtx map[string]any) Decision {
	now := m.now()
	decision := Decision{Allowed: false, Reason: "Insufficient privileges"}

	// An empty user id owns no sessions; the scan below must never widen to
	// other users' sessions.
	for _, ls := range m.sessions.liveSessions(userID) {
		ls.mu.Lock()
		if !ls.s.MonitoringActive || !ls.s.ExpiresAt.After(now) {
			ls.mu.Unlock()
			continue
		}
		matched := false
		for _, perm := range ls.s.Permissions {
			if permissionAllows(perm, resource, action, evalCtx) {
				matched = true
				break
			}
		}
		id := ls.s.ID
		ls.mu.Unlock()

		if matched {
			decision = Decision{Allowed: true, SessionID: id}
			break
		}
	}

	m.metrics.RecordCheck(decision.Allowed)
	outcome := "denied"
	if decision.Allowed {
		outcome = "allowed"
	}
	m.emit(audit.Event{
		Event:     audit.EventPermissionChecked,
		UserID:    userID,
		SessionID: decision.SessionID,
		Outcome:   outcome,
		Details:   map[string]any{"resource": resource, "action": action},
	})

	return decision
}

// ListActiveSessions returns snapshots of the user's live, unexpired
// sessions.
func (m *Manager) ListActiveSessions(ctx context.Context, userID string) []Session {
	now := m.now()
	var out []Session
	for _, ls := range m.sessions.liveSessions(userID) {
		snap := ls.snapshot()
		if snap.MonitoringActive && snap.ExpiresAt.After(now) {
			out = append(out, snap)
		}
	}
	return out
}

// GetRequest returns a request by id, including terminal history.
func (m *Manager) GetRequest(id string) (AccessRequest, error) {
	req, ok := m.requests.snapshot(id)
	if !ok {
		return AccessRequest{}, pamerr.NewNotFound("request", id)
	}
	return req, nil
}

// GetSession returns a session by id, live or revoked, with its full
// activity and warning history.
func (m *Manager) GetSession(id string) (Session, error) {
	ls, ok := m.sessions.get(id)
	if !ok {
		return Session{}, pamerr.NewNotFound("session", id)
	}
	return ls.snapshot(), nil
}

// RevokeSession terminates a session immediately. No-op if the session is
// unknown. The session stays retrievable by id for audit.
func (m *Manager) RevokeSession(ctx context.Context, sessionID, reason string) {
	ls, ok := m.sessions.get(sessionID)
	if !ok {
		m.logger.Debug().Str("session_id", sessionID).Msg("revoke on unknown session ignored")
		return
	}
	m.revoke(ls, m.now(), reason, "manual")
}

// revoke flips the session dead: monitoring off, expiry now, removed from
// the live set. Returns false if the session was already revoked. All
// callers (manual revoke, sweeper, auto-revoke) funnel through here so a
// session is revoked exactly once.
func (m *Manager) revoke(ls *lockedSession, now time.Time, reason, cause string) bool {
	ls.mu.Lock()
	if !ls.s.MonitoringActive {
		ls.mu.Unlock()
		return false
	}
	ls.s.MonitoringActive = false
	ls.s.ExpiresAt = now
	id := ls.s.ID
	userID := ls.s.UserID
	ls.mu.Unlock()

	m.sessions.removeLive(id)

	m.metrics.RecordRevocation(cause)
	m.metrics.ActiveSessions.Set(float64(m.sessions.liveCount()))
	m.emit(audit.Event{
		Event:     audit.EventSessionRevoked,
		UserID:    userID,
		SessionID: id,
		Outcome:   cause,
		Details:   map[string]any{"reason": reason},
	})

	m.logger.Info().
		Str("session_id", id).
		Str("reason", reason).
		Str("cause", cause).
		Msg("privileged session revoked")

	return true
}

// RequestEmergencyAccess grants break-glass access: auto-approved
// unconditionally with a fixed critical risk score and the configured
// emergency duration. Exists for incidents where no approver is reachable.
func (m *Manager) RequestEmergencyAccess(ctx context.Context, userID, justification, incident string) (AccessRequest, error) {
	if userID == "" {
		return AccessRequest{}, pamerr.NewValidation("userId", "required", "userId must not be empty")
	}
	if !m.cfg.BreakGlassEnabled {
		return AccessRequest{}, pamerr.NewFeatureDisabled("break_glass")
	}
	if !m.catalog.Has(EmergencyRoleID) {
		return AccessRequest{}, pamerr.NewConfiguration("emergency_admin role not defined")
	}

	now := m.now()
	approvedAt := now
	expiresAt := now.Add(time.Duration(m.cfg.EmergencyDuration) * time.Minute)
	req := &AccessRequest{
		ID:              uuid.New().String(),
		UserID:          userID,
		RoleID:          EmergencyRoleID,
		Justification:   justification,
		RequestedAt:     now,
		Duration:        m.cfg.EmergencyDuration,
		Status:          StatusApproved,
		ApprovedBy:      "break_glass",
		ApprovedAt:      &approvedAt,
		ExpiresAt:       &expiresAt,
		EmergencyAccess: true,
		RiskAssessment: RiskAssessment{
			Score:   90,
			Factors: []string{"emergency break-glass access"},
			Level:   RiskCritical,
		},
	}
	m.requests.add(req)
	snapshot := *req

	m.metrics.RecordRequest("emergency")
	m.emit(audit.Event{
		Event:     audit.EventEmergencyGranted,
		UserID:    userID,
		RequestID: req.ID,
		RoleID:    EmergencyRoleID,
		Outcome:   string(StatusApproved),
		Details: map[string]any{
			"justification": justification,
			"incident":      incident,
			"duration":      req.Duration,
			"riskScore":     req.RiskAssessment.Score,
			"expiresAt":     expiresAt,
		},
	})

	m.logger.Warn().
		Str("request_id", req.ID).
		Str("user_id", userID).
		Str("incident", incident).
		Time("expires_at", expiresAt).
		Msg("EMERGENCY break-glass access granted")

	return snapshot, nil
}

// emit enqueues an audit event; a nil recorder is tolerated for embedders
// that opt out of auditing.
func (m *Manager) emit(e audit.Event) {
	if m.audit == nil {
		return
	}
	m.audit.Emit(e)
}
