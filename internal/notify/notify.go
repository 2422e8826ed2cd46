// Package notify delivers approval notifications when an access request
// transitions to pending. Delivery is fire-and-forget from the core's point
// of view: a failed notification never rolls back the pending state, and an
// approver can still decide the request through the API.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/pam-core/internal/pam"
)

// Notifier is the approval notification collaborator.
type Notifier interface {
	InitiateApproval(ctx context.Context, req pam.AccessRequest, role pam.PrivilegedRole) error
}

// LogNotifier writes approval notifications to the log. Used in development
// and as the fallback when no external channel is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

// InitiateApproval logs the pending request and its approver list.
func (n *LogNotifier) InitiateApproval(_ context.Context, req pam.AccessRequest, role pam.PrivilegedRole) error {
	n.logger.Info().
		Str("request_id", req.ID).
		Str("user_id", req.UserID).
		Str("role_id", role.ID).
		Strs("approvers", role.Approvers).
		Int("risk_score", req.RiskAssessment.Score).
		Msg("approval required")
	return nil
}

// MultiNotifier fans out to multiple notifiers, returning the last error.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a fan-out notifier.
func NewMultiNotifier(ns ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: ns}
}

// InitiateApproval delivers to every configured notifier.
func (m *MultiNotifier) InitiateApproval(ctx context.Context, req pam.AccessRequest, role pam.PrivilegedRole) error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.InitiateApproval(ctx, req, role); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
