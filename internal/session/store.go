// Package session keeps per-conversation message history in memory and
// evicts a conversation once it has been idle for the TTL.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/metrics"
)

type session struct {
	messages []domain.Message
	deadline time.Time
	timer    Timer
	seq      uint64 // identifies the live timer; older timers find a different value and do nothing
}

// Store owns every live session. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	seq      uint64
	closed   bool

	ttl    time.Duration
	sched  Scheduler
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithScheduler replaces the wall clock, mainly for tests.
func WithScheduler(s Scheduler) Option {
	return func(st *Store) { st.sched = s }
}

// New creates a Store. ttl <= 0 uses domain.DefaultSessionTTL.
func New(ttl time.Duration, logger *zap.Logger, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = domain.DefaultSessionTTL
	}
	s := &Store{
		sessions: make(map[string]*session),
		ttl:      ttl,
		sched:    wallClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds one message to the session, creating it if needed, and pushes
// its eviction to now+TTL.
func (s *Store) Append(id string, role domain.Role, content string) {
	s.AppendTurn(id, domain.Message{Role: role, Content: content})
}

// AppendTurn adds messages in order under a single lock, so readers never
// observe half of a turn.
func (s *Store) AppendTurn(id string, msgs ...domain.Message) {
	if len(msgs) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	sess, ok := s.sessions[id]
	if ok && !s.sched.Now().Before(sess.deadline) {
		// expired but its timer has not run yet
		s.removeLocked(id, sess)
		ok = false
	}
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
		metrics.SessionsActive.Inc()
		s.logger.Debug("Session created", zap.String("session_id", id))
	}

	sess.messages = append(sess.messages, msgs...)
	s.rescheduleLocked(id, sess)
}

// History returns a copy of the session's messages, or an empty slice when
// the session does not exist or has expired.
func (s *Store) History(id string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return []domain.Message{}
	}
	if !s.sched.Now().Before(sess.deadline) {
		s.removeLocked(id, sess)
		return []domain.Message{}
	}

	out := make([]domain.Message, len(sess.messages))
	copy(out, sess.messages)
	return out
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close cancels every pending eviction and drops all sessions.
// Appends after Close are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.timer != nil {
			sess.timer.Stop()
		}
		delete(s.sessions, id)
		metrics.SessionsActive.Dec()
	}
	s.closed = true
}

func (s *Store) rescheduleLocked(id string, sess *session) {
	if sess.timer != nil {
		sess.timer.Stop()
	}
	s.seq++
	seq := s.seq
	sess.seq = seq
	sess.deadline = s.sched.Now().Add(s.ttl)
	sess.timer = s.sched.AfterFunc(s.ttl, func() { s.evict(id, seq) })
}

// evict runs on the timer. A timer that was replaced by a later append
// carries a stale seq and leaves the session alone.
func (s *Store) evict(id string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.seq != seq {
		return
	}
	s.removeLocked(id, sess)
}

func (s *Store) removeLocked(id string, sess *session) {
	if sess.timer != nil {
		sess.timer.Stop()
	}
	delete(s.sessions, id)
	metrics.SessionsActive.Dec()
	metrics.SessionEvictionsTotal.Inc()
	s.logger.Debug("Session evicted",
		zap.String("session_id", id),
		zap.Int("messages", len(sess.messages)),
	)
}
