package pam

import (
	"context"
	"fmt"
	"time"
)

// Start launches the background sweeper. It runs until ctx is cancelled or
// Stop is called.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.sweepCancel = context.WithCancel(ctx)
	m.sweepDone = make(chan struct{})

	go func() {
		defer close(m.sweepDone)
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()

		m.logger.Info().Dur("interval", m.cfg.SweepInterval).Msg("session sweeper started")
		for {
			select {
			case <-ctx.Done():
				m.logger.Info().Msg("session sweeper stopped")
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Stop cancels the sweeper and waits for it to exit.
func (m *Manager) Stop() {
	if m.sweepCancel != nil {
		m.sweepCancel()
		<-m.sweepDone
	}
}

// Sweep runs one sweep pass: expired sessions are revoked, sessions close to
// expiry get a single time warning, and approved requests whose window
// passed without activation are marked expired. The whole pass compares
// against one consistent timestamp, and running it twice with no time
// elapsed changes nothing.
func (m *Manager) Sweep() {
	start := time.Now()
	now := m.now()

	expired := 0
	warned := 0

	for _, ls := range m.sessions.allLive() {
		ls.mu.Lock()
		if !ls.s.MonitoringActive {
			ls.mu.Unlock()
			continue
		}
		if !ls.s.ExpiresAt.After(now) {
			ls.mu.Unlock()
			if m.revoke(ls, now, "Session expired", "expired") {
				expired++
			}
			continue
		}

		remaining := ls.s.ExpiresAt.Sub(now)
		if remaining <= m.cfg.WarningThreshold && !hasTimeWarning(ls.s.Warnings) {
			ls.s.Warnings = append(ls.s.Warnings, SessionWarning{
				Timestamp:  now,
				Type:       WarningTime,
				Message:    fmt.Sprintf("Session expires in %d minutes", int(remaining.Minutes())),
				Severity:   SeverityMedium,
				AutoAction: ActionWarn,
			})
			warned++
		}
		ls.mu.Unlock()
	}

	expiredRequests := m.requests.expireApproved(now)

	m.metrics.ObserveSweep(time.Since(start).Seconds())

	if expired > 0 || warned > 0 || len(expiredRequests) > 0 {
		m.logger.Info().
			Int("sessions_expired", expired).
			Int("sessions_warned", warned).
			Int("requests_expired", len(expiredRequests)).
			Msg("sweep pass completed")
	}
}

// hasTimeWarning reports whether a time_warning was already recorded.
// Called with the session lock held.
func hasTimeWarning(warnings []SessionWarning) bool {
	for _, w := range warnings {
		if w.Type == WarningTime {
			return true
		}
	}
	return false
}
