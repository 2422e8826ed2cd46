package audit

import (
	"sync"

	"github.com/rs/zerolog"
)

// MemorySink retains events in memory for retrieval over the API. Retention
// is capped; the oldest events are discarded first.
type MemorySink struct {
	mu      sync.RWMutex
	entries []Event
	max     int
	logger  zerolog.Logger
}

// NewMemorySink creates a sink retaining at most max events.
func NewMemorySink(max int, logger zerolog.Logger) *MemorySink {
	if max <= 0 {
		max = 10000
	}
	return &MemorySink{
		entries: make([]Event, 0, 1000),
		max:     max,
		logger:  logger.With().Str("component", "audit_sink").Logger(),
	}
}

// Write stores the event and logs it.
func (s *MemorySink) Write(e Event) error {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("event", e.Event).
		Str("user_id", e.UserID).
		Str("request_id", e.RequestID).
		Str("session_id", e.SessionID).
		Str("outcome", e.Outcome).
		Msg("audit event")

	return nil
}

// GetEntries returns the most recent events, newest first, optionally
// filtered by user.
func (s *MemorySink) GetEntries(userID string, limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Event
	for i := len(s.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if userID == "" || s.entries[i].UserID == userID {
			result = append(result, s.entries[i])
		}
	}
	return result
}

// Count returns the number of retained events.
func (s *MemorySink) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
