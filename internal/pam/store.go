package pam

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// errRequestMissing is internal to the store; the manager converts it to a
// NotFoundError carrying the id.
var errRequestMissing = errors.New("request missing")

// lockedSession pairs session state with its own mutex. All mutation of a
// single session (activation, activity append, warning append, revocation)
// is serialized on this lock; sessions on different locks proceed
// independently.
type lockedSession struct {
	mu sync.Mutex
	s  Session
}

// snapshot returns a deep copy of the session under its lock.
func (ls *lockedSession) snapshot() Session {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return cloneSessionLocked(&ls.s)
}

func cloneSessionLocked(s *Session) Session {
	cp := *s
	cp.Permissions = clonePermissions(s.Permissions)
	cp.Activities = append([]Activity(nil), s.Activities...)
	cp.Warnings = append([]SessionWarning(nil), s.Warnings...)
	return cp
}

// sessionStore owns the session collections: the live set consulted by
// permission checks, and the full archive kept for audit retrieval by id.
// Sessions are never deleted from the archive.
type sessionStore struct {
	mu     sync.RWMutex
	all    map[string]*lockedSession
	live   map[string]struct{}
	logger zerolog.Logger
}

func newSessionStore(logger zerolog.Logger) *sessionStore {
	return &sessionStore{
		all:    make(map[string]*lockedSession),
		live:   make(map[string]struct{}),
		logger: logger.With().Str("component", "session_store").Logger(),
	}
}

// add stores a new session and marks it live.
func (st *sessionStore) add(s Session) *lockedSession {
	ls := &lockedSession{s: s}
	st.mu.Lock()
	st.all[s.ID] = ls
	st.live[s.ID] = struct{}{}
	st.mu.Unlock()
	return ls
}

// get returns the session with the given id, live or not.
func (st *sessionStore) get(id string) (*lockedSession, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ls, ok := st.all[id]
	return ls, ok
}

// isLive reports whether the session is in the live set.
func (st *sessionStore) isLive(id string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.live[id]
	return ok
}

// removeLive drops the session from the live set. The session itself stays
// retrievable by id.
func (st *sessionStore) removeLive(id string) {
	st.mu.Lock()
	delete(st.live, id)
	st.mu.Unlock()
}

// liveCount returns the size of the live set.
func (st *sessionStore) liveCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.live)
}

// liveSessions returns the locked sessions in the live set belonging to the
// given user. An empty user id owns no sessions. The store lock is released
// before callers touch individual session locks.
func (st *sessionStore) liveSessions(userID string) []*lockedSession {
	if userID == "" {
		return nil
	}
	st.mu.RLock()
	out := make([]*lockedSession, 0, len(st.live))
	for id := range st.live {
		ls := st.all[id]
		if ls.s.UserID != userID {
			// UserID is written once at activation, safe to read here.
			continue
		}
		out = append(out, ls)
	}
	st.mu.RUnlock()
	return out
}

// allLive returns every locked session in the live set. Sweeper only; never
// exposed through the facade's user-scoped reads.
func (st *sessionStore) allLive() []*lockedSession {
	st.mu.RLock()
	out := make([]*lockedSession, 0, len(st.live))
	for id := range st.live {
		out = append(out, st.all[id])
	}
	st.mu.RUnlock()
	return out
}

// requestStore owns the access request collection. Requests are never
// deleted: after a terminal status they are immutable history.
type requestStore struct {
	mu       sync.RWMutex
	requests map[string]*AccessRequest
}

func newRequestStore() *requestStore {
	return &requestStore{requests: make(map[string]*AccessRequest)}
}

func (st *requestStore) add(req *AccessRequest) {
	st.mu.Lock()
	st.requests[req.ID] = req
	st.mu.Unlock()
}

func (st *requestStore) get(id string) (*AccessRequest, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	req, ok := st.requests[id]
	return req, ok
}

// update runs fn on the request under the write lock, giving callers an
// atomic check-and-mutate (a decide racing another decide sees the first
// one's status).
func (st *requestStore) update(id string, fn func(*AccessRequest) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	req, ok := st.requests[id]
	if !ok {
		return errRequestMissing
	}
	return fn(req)
}

// expireApproved marks approved requests whose expiry has passed without
// activation as expired, returning the affected ids.
func (st *requestStore) expireApproved(now time.Time) []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []string
	for id, req := range st.requests {
		if req.Status == StatusApproved && req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
			req.Status = StatusExpired
			out = append(out, id)
		}
	}
	return out
}

// snapshot returns a copy of a request for external callers.
func (st *requestStore) snapshot(id string) (AccessRequest, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	req, ok := st.requests[id]
	if !ok {
		return AccessRequest{}, false
	}
	return *req, true
}

// list returns copies of all requests.
func (st *requestStore) list() []AccessRequest {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]AccessRequest, 0, len(st.requests))
	for _, req := range st.requests {
		out = append(out, *req)
	}
	return out
}
