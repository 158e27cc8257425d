package registration

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithIdleTTL expires sessions that saw no mutation for ttl. Zero disables expiry.
func WithIdleTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[int64]Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// lookup returns the live session for userID. Expired sessions read as absent
// until Sweep removes them. Caller holds mu.
func (s *MemoryStore) lookup(userID int64) (Session, bool) {
	sess, ok := s.sessions[userID]
	if !ok || s.expired(sess, s.now()) {
		return Session{}, false
	}
	return sess, true
}

func (s *MemoryStore) expired(sess Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.UpdatedAt) > s.ttl
}

func (s *MemoryStore) Exists(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(userID)
	return ok, nil
}

func (s *MemoryStore) Create(_ context.Context, userID int64) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(userID); ok {
		return Session{}, ErrAlreadyInProgress
	}
	sess := newSession(userID, s.now())
	s.sessions[userID] = sess
	return sess, nil
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(userID)
	if !ok {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (s *MemoryStore) Mutate(_ context.Context, userID int64, updates ...Update) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(userID)
	if !ok {
		return Session{}, ErrNoSession
	}
	next, err := apply(sess, s.now(), updates)
	if err != nil {
		return sess, err
	}
	s.sessions[userID] = next
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for _, sess := range s.sessions {
		if !s.expired(sess, now) {
			n++
		}
	}
	return n, nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
