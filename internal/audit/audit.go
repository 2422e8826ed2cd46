// Package audit provides the asynchronous audit pipeline for the PAM core.
// Facade operations enqueue events onto a bounded channel and return; a
// single consumer goroutine hands them to the configured sink. A slow or
// failing sink can therefore never stall or fail an authorization decision.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event names, one per lifecycle event.
const (
	EventRequestCreated    = "request.created"
	EventRequestDecided    = "request.decided"
	EventSessionActivated  = "session.activated"
	EventPermissionChecked = "permission.checked"
	EventActivityRecorded  = "activity.recorded"
	EventSessionRevoked    = "session.revoked"
	EventEmergencyGranted  = "emergency.granted"
)

// Event is one structured audit record. Timestamp is serialized as RFC 3339
// (ISO 8601) by encoding/json.
type Event struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"userId,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	RoleID    string         `json:"roleId,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Sink receives audit events. Implementations must tolerate concurrent use
// from the recorder's consumer goroutine only.
type Sink interface {
	Write(Event) error
}

// Recorder queues events for asynchronous delivery to a sink.
type Recorder struct {
	queue   chan Event
	sink    Sink
	logger  zerolog.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	dropped int64
	onDrop  func()
}

// NewRecorder creates a recorder with the given queue capacity.
func NewRecorder(sink Sink, queueSize int, logger zerolog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Recorder{
		queue:  make(chan Event, queueSize),
		sink:   sink,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// OnDrop registers a callback invoked once per dropped event. Must be set
// before Start.
func (r *Recorder) OnDrop(fn func()) {
	r.onDrop = fn
}

// Start launches the consumer goroutine.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for e := range r.queue {
			if err := r.sink.Write(e); err != nil {
				// Sink failures never propagate to callers.
				r.logger.Warn().Err(err).Str("event", e.Event).Msg("audit sink write failed")
			}
		}
	}()
}

// Close stops accepting events and drains the queue.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

// Emit enqueues an event without blocking. Events are dropped (and counted)
// when the queue is full or the recorder is closed.
func (r *Recorder) Emit(e Event) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.drop()
		return
	}
	select {
	case r.queue <- e:
	default:
		r.drop()
		r.logger.Warn().Str("event", e.Event).Int64("dropped_total", r.dropped).Msg("audit queue full, event dropped")
	}
}

// drop counts a lost event. Called with the mutex held.
func (r *Recorder) drop() {
	r.dropped++
	if r.onDrop != nil {
		r.onDrop()
	}
}

// Dropped returns the number of events dropped so far.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// QueueDepth returns the number of events waiting for delivery.
func (r *Recorder) QueueDepth() int {
	return len(r.queue)
}
