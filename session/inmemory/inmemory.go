package inmemory

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/finassist/docindex"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/session"
)

type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *log.Logger
	now      func() time.Time
}

func NewInMemorySessionStore(logger *log.Logger) session.Store {
	return &Store{sessions: make(map[string]*Session), logger: logger, now: time.Now}
}

// EnsureSession extends the session with the given id, or starts a new one
// when the id is unknown or expired. Starting a session also sweeps every
// expired session out of the store.
func (store *Store) EnsureSession(id string, ttl time.Duration) (session.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := store.now()
	if id != "" {
		if sess, ok := store.sessions[id]; ok && now.Before(sess.ExpiresAt()) {
			sess.expire(now, ttl)
			return sess, nil
		}
	}
	store.sweep(now)

	sess := newSession(uuid.NewString(), store.logger)
	sess.expire(now, ttl)
	store.sessions[sess.id] = sess
	return sess, nil
}

func (store *Store) GetSession(id string) (session.Session, error) {
	store.mu.RLock()
	sess, ok := store.sessions[id]
	store.mu.RUnlock()
	if !ok {
		return nil, session.ErrNotFound
	}
	if !store.now().Before(sess.ExpiresAt()) {
		_ = store.DeleteSession(id)
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (store *Store) DeleteSession(id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	sess, ok := store.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	store.drop(sess)
	return nil
}

// sweep removes expired sessions. Callers hold store.mu.
func (store *Store) sweep(now time.Time) {
	for _, sess := range store.sessions {
		if !now.Before(sess.ExpiresAt()) {
			store.drop(sess)
		}
	}
}

// drop forgets sess and releases its document index. Callers hold store.mu.
func (store *Store) drop(sess *Session) {
	delete(store.sessions, sess.id)
	sess.index.Reset()
}

// Len returns the number of sessions held, expired ones included until swept.
func (store *Store) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.sessions)
}

type Session struct {
	id        string
	mu        sync.RWMutex
	expiresAt time.Time
	notes     string
	quotes    []models.AssetQuote
	quotesAt  time.Time
	turns     []models.ChatTurn
	notices   *notice.Collector
	index     docindex.Holder
}

func newSession(id string, logger *log.Logger) *Session {
	return &Session{id: id, notices: notice.NewCollector(logger)}
}

func (s *Session) ID() string { return s.id }

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) expire(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	s.expiresAt = now.Add(ttl)
	s.mu.Unlock()
}

func (s *Session) Notes() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes, nil
}

func (s *Session) SetNotes(notes string) error {
	s.mu.Lock()
	s.notes = notes
	s.mu.Unlock()
	return nil
}

func (s *Session) Quotes() ([]models.AssetQuote, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AssetQuote(nil), s.quotes...), s.quotesAt, nil
}

func (s *Session) SetQuotes(quotes []models.AssetQuote) error {
	s.mu.Lock()
	s.quotes = append([]models.AssetQuote(nil), quotes...)
	s.quotesAt = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *Session) Transcript() ([]models.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChatTurn(nil), s.turns...), nil
}

func (s *Session) AppendTurns(turns ...models.ChatTurn) error {
	s.mu.Lock()
	s.turns = append(s.turns, turns...)
	s.mu.Unlock()
	return nil
}

func (s *Session) Notify(level notice.Level, msg string) { s.notices.Notify(level, msg) }

func (s *Session) DrainNotices() ([]notice.Notice, error) { return s.notices.Drain(), nil }

func (s *Session) Index() *docindex.Holder { return &s.index }
