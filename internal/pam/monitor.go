package pam

import (
	"context"
	"strings"
	"time"

	"github.com/p-blackswan/pam-core/internal/audit"
)

// Activity risk scoring constants.
const (
	activityHighRiskBonus  = 60
	activityOffHoursBonus  = 20
	activityRapidBonus     = 30
	activityBlockThreshold = 80

	rapidWindow        = 5 * time.Minute
	rapidActivityCount = 10 // more than this many in the window adds the rapid bonus

	workdayStartHour = 6  // inclusive
	workdayEndHour   = 22 // exclusive
)

// highRiskMarkers are action-name substrings that mark an activity high risk.
var highRiskMarkers = []string{"delete", "modify_security", "escalate_privileges", "export_data"}

// blockReasonHighRisk is the block reason attached to activities scored
// above the block threshold.
const blockReasonHighRisk = "High risk activity detected"

// assessActivity scores one activity. recentCount is the number of
// activities already recorded in the session within the trailing window;
// the activity being scored counts toward the rapid-succession total.
func assessActivity(action string, at time.Time, recentCount int) int {
	score := 0

	for _, marker := range highRiskMarkers {
		if strings.Contains(action, marker) {
			score += activityHighRiskBonus
			break
		}
	}

	hour := at.Hour()
	if hour < workdayStartHour || hour >= workdayEndHour {
		score += activityOffHoursBonus
	}

	if recentCount+1 > rapidActivityCount {
		score += activityRapidBonus
	}

	return clampScore(score)
}

// RecordActivity appends a privileged activity to a session and scores its
// risk. Unknown sessions are a silent no-op: the caller already lost the
// session reference and recording must never throw back into the business
// operation. Activities scored above the block threshold are marked blocked,
// raise a critical security alert, and trigger auto-revocation when enabled.
func (m *Manager) RecordActivity(ctx context.Context, sessionID, action, resource string, details map[string]any) {
	ls, ok := m.sessions.get(sessionID)
	if !ok {
		m.logger.Debug().Str("session_id", sessionID).Msg("activity on unknown session dropped")
		return
	}

	now := m.now()

	ls.mu.Lock()
	recent := 0
	cutoff := now.Add(-rapidWindow)
	for i := len(ls.s.Activities) - 1; i >= 0; i-- {
		if ls.s.Activities[i].Timestamp.Before(cutoff) {
			break
		}
		recent++
	}

	score := assessActivity(action, now, recent)
	act := Activity{
		Timestamp: now,
		Action:    action,
		Resource:  resource,
		Details:   details,
		RiskScore: score,
	}

	shouldRevoke := false
	if score > activityBlockThreshold {
		act.Blocked = true
		act.BlockReason = blockReasonHighRisk
		ls.s.Activities = append(ls.s.Activities, act)
		ls.s.Warnings = append(ls.s.Warnings, SessionWarning{
			Timestamp:  now,
			Type:       WarningSecurityAlert,
			Message:    "High risk activity blocked: " + action,
			Severity:   SeverityCritical,
			AutoAction: ActionRevoke,
		})
		// The revoke flag is decided under the session lock so concurrent
		// recording cannot double-trigger revocation.
		shouldRevoke = m.cfg.AutoRevokeOnSuspicious && ls.s.MonitoringActive
	} else {
		ls.s.Activities = append(ls.s.Activities, act)
	}
	ls.mu.Unlock()

	m.metrics.RecordActivity(act.Blocked)
	m.emit(audit.Event{
		Event:     audit.EventActivityRecorded,
		SessionID: sessionID,
		Outcome:   activityOutcome(act.Blocked),
		Details: map[string]any{
			"action":    action,
			"resource":  resource,
			"riskScore": score,
		},
	})

	if act.Blocked {
		m.logger.Warn().
			Str("session_id", sessionID).
			Str("action", action).
			Int("risk_score", score).
			Msg("high risk activity blocked")
	}

	if shouldRevoke {
		m.revoke(ls, now, "Suspicious activity detected", "auto_revoke")
	}
}

func activityOutcome(blocked bool) string {
	if blocked {
		return "blocked"
	}
	return "recorded"
}
