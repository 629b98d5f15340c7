package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/finassist/docindex"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/session"
)

func TestEnsureAndGet(t *testing.T) {
	store := NewInMemorySessionStore(nil)
	sess, err := store.EnsureSession("", time.Hour)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	again, err := store.EnsureSession(sess.ID(), time.Hour)
	if err != nil || again.ID() != sess.ID() {
		t.Fatalf("expected the same session, got %v %v", again, err)
	}
	if _, err := store.GetSession("nope"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteSession(sess.ID()); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := store.GetSession(sess.ID()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("deleted session still reachable")
	}
}

func TestExpiredSession(t *testing.T) {
	s := NewInMemorySessionStore(nil).(*Store)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	sess, _ := s.EnsureSession("", time.Minute)

	now = now.Add(2 * time.Minute)
	if _, err := s.GetSession(sess.ID()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
	fresh, _ := s.EnsureSession(sess.ID(), time.Minute)
	if fresh.ID() == sess.ID() {
		t.Fatalf("expired id should not be revived")
	}
}

func TestSessionState(t *testing.T) {
	sess, _ := NewInMemorySessionStore(nil).EnsureSession("", time.Hour)

	_ = sess.SetNotes("saving for a house")
	if notes, _ := sess.Notes(); notes != "saving for a house" {
		t.Fatalf("unexpected notes %q", notes)
	}

	_ = sess.SetQuotes([]models.AssetQuote{{Ticker: "IBM"}})
	quotes, at, _ := sess.Quotes()
	if len(quotes) != 1 || at.IsZero() {
		t.Fatalf("unexpected quotes %v at %v", quotes, at)
	}

	_ = sess.AppendTurns(models.ChatTurn{Role: models.RoleUser, Content: "hi"})
	_ = sess.AppendTurns(models.ChatTurn{Role: models.RoleAssistant, Content: "hello"})
	turns, _ := sess.Transcript()
	if len(turns) != 2 || turns[1].Role != models.RoleAssistant {
		t.Fatalf("unexpected transcript %+v", turns)
	}

	sess.Notify(notice.Warning, "careful")
	got, _ := sess.DrainNotices()
	if len(got) != 1 || got[0].Message != "careful" {
		t.Fatalf("unexpected notices %+v", got)
	}
	if again, _ := sess.DrainNotices(); len(again) != 0 {
		t.Fatalf("notices should be drained")
	}
	if sess.Index() == nil || sess.Index().Current() != nil {
		t.Fatalf("new session should have an empty index holder")
	}
}

type fixedBuilder struct{ ix *docindex.Index }

func (b fixedBuilder) Build(context.Context, string) (*docindex.Index, error) { return b.ix, nil }

func TestExpiredSessionsAreSwept(t *testing.T) {
	s := NewInMemorySessionStore(nil).(*Store)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	old, _ := s.EnsureSession("", time.Minute)
	other, _ := s.EnsureSession("", time.Minute)
	holder := old.Index()
	holder.Ensure(context.Background(), fixedBuilder{ix: &docindex.Index{}}, "data", false)
	if holder.Current() == nil || s.Len() != 2 {
		t.Fatalf("expected two sessions with an index, got %d", s.Len())
	}

	now = now.Add(2 * time.Minute)
	fresh, _ := s.EnsureSession(old.ID(), time.Minute)
	if fresh.ID() == old.ID() {
		t.Fatalf("expired id should not be revived")
	}
	if s.Len() != 1 {
		t.Fatalf("expected only the new session to remain, got %d", s.Len())
	}
	if _, err := s.GetSession(other.ID()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expired session should have been swept, got %v", err)
	}
	if holder.Current() != nil {
		t.Fatalf("swept session should release its index")
	}
}

func TestDeleteReleasesIndex(t *testing.T) {
	store := NewInMemorySessionStore(nil)
	sess, _ := store.EnsureSession("", time.Hour)
	holder := sess.Index()
	holder.Ensure(context.Background(), fixedBuilder{ix: &docindex.Index{}}, "data", false)

	if err := store.DeleteSession(sess.ID()); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if holder.Current() != nil {
		t.Fatalf("deleted session should release its index")
	}
}
