// Package session holds the per-user state of the assistant: financial
// notes, the cached asset table, the chat transcript, the document index
// and the notices raised while serving the user.
package session

import (
	"errors"
	"time"

	"github.com/mohammad-safakhou/finassist/docindex"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Store interface for session management
type Store interface {
	// EnsureSession returns the session with id, refreshing its TTL, or
	// creates a new one when id is empty or unknown.
	EnsureSession(id string, ttl time.Duration) (Session, error)
	GetSession(id string) (Session, error)
	DeleteSession(id string) error
}

// Session interface for session operations. A session is also the notice
// sink for work done on its behalf.
type Session interface {
	notice.Sink

	ID() string
	ExpiresAt() time.Time

	Notes() (string, error)
	SetNotes(notes string) error

	// Quotes returns the last aggregated asset table and when it was stored.
	Quotes() ([]models.AssetQuote, time.Time, error)
	SetQuotes(quotes []models.AssetQuote) error

	// Transcript is append-only.
	Transcript() ([]models.ChatTurn, error)
	AppendTurns(turns ...models.ChatTurn) error

	DrainNotices() ([]notice.Notice, error)

	// Index is the session's document index. It is never persisted.
	Index() *docindex.Holder
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)
