package conversation

import (
	"sync"
	"time"
)

type slot struct {
	mu      sync.Mutex
	session *Session
	// refs counts handles holding or waiting for mu. Guarded by SessionStore.mu.
	refs int
}

// SessionStore keeps one session per user in memory.
// Each user has an own lock, so users never wait on each other.
type SessionStore struct {
	mu    sync.Mutex
	slots map[int64]*slot
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionStore creates a store evicting sessions idle for longer than ttl.
// Zero ttl disables expiry.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		slots: make(map[int64]*slot),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Handle is exclusive access to one user's session until Release.
type Handle struct {
	store  *SessionStore
	userID int64
	slot   *slot
}

// Acquire blocks until the caller owns the user's session.
func (s *SessionStore) Acquire(userID int64) *Handle {
	s.mu.Lock()
	sl, ok := s.slots[userID]
	if !ok {
		sl = &slot{}
		s.slots[userID] = sl
	}
	sl.refs++
	s.mu.Unlock()

	sl.mu.Lock()

	if sl.session != nil && s.expired(sl.session, s.now()) {
		sl.session = nil
	}

	return &Handle{store: s, userID: userID, slot: sl}
}

// Session returns the live session or nil.
func (h *Handle) Session() *Session {
	return h.slot.session
}

// Put replaces the session.
func (h *Handle) Put(sess *Session) {
	sess.UserID = h.userID
	h.slot.session = sess
}

// Clear discards the session.
func (h *Handle) Clear() {
	h.slot.session = nil
}

// Release gives up ownership and stamps the session activity time.
func (h *Handle) Release() {
	s := h.store
	if h.slot.session != nil {
		h.slot.session.LastActivity = s.now()
	}
	h.slot.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	h.slot.refs--
	// with no refs left nobody can touch the slot, reading session is safe
	if h.slot.refs == 0 && h.slot.session == nil {
		delete(s.slots, h.userID)
	}
}

// Sweep evicts sessions idle for longer than the ttl and returns how many were removed.
// Slots in use are skipped.
func (s *SessionStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sl := range s.slots {
		if sl.refs > 0 {
			continue
		}
		if sl.session == nil {
			delete(s.slots, id)
			continue
		}
		if s.expired(sl.session, now) {
			delete(s.slots, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of users with a session or a pending event.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *SessionStore) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.LastActivity) > s.ttl
}
