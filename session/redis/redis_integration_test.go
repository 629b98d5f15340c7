package redis_session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/finassist/docindex"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/session"
)

func startRedis(t *testing.T, ctx context.Context) *redis.Client {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := c.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSessionRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	store := NewWithClient(startRedis(t, ctx), 5*time.Second, nil)

	sess, err := store.EnsureSession("", time.Hour)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if err := sess.SetNotes("emergency fund first"); err != nil {
		t.Fatalf("SetNotes: %v", err)
	}
	if err := sess.SetQuotes([]models.AssetQuote{{Ticker: "IBM", CurrentPrice: "$1.00", PriceChangePct: "0.00%"}}); err != nil {
		t.Fatalf("SetQuotes: %v", err)
	}
	if err := sess.AppendTurns(
		models.ChatTurn{Role: models.RoleUser, Content: "price of IBM"},
		models.ChatTurn{Role: models.RoleAssistant, Content: "here", Chart: []models.ChartPoint{{Date: "2024-01-02", Close: 1}}},
	); err != nil {
		t.Fatalf("AppendTurns: %v", err)
	}
	sess.Notify(notice.Warning, "heads up")

	got, err := store.GetSession(sess.ID())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if notes, _ := got.Notes(); notes != "emergency fund first" {
		t.Fatalf("unexpected notes %q", notes)
	}
	quotes, at, err := got.Quotes()
	if err != nil || len(quotes) != 1 || quotes[0].Ticker != "IBM" || at.IsZero() {
		t.Fatalf("unexpected quotes %+v %v %v", quotes, at, err)
	}
	turns, err := got.Transcript()
	if err != nil || len(turns) != 2 || len(turns[1].Chart) != 1 {
		t.Fatalf("unexpected transcript %+v %v", turns, err)
	}
	notices, err := got.DrainNotices()
	if err != nil || len(notices) != 1 || notices[0].Level != notice.Warning {
		t.Fatalf("unexpected notices %+v %v", notices, err)
	}
	if again, _ := got.DrainNotices(); len(again) != 0 {
		t.Fatalf("notices should be drained")
	}
	if got.Index() != sess.Index() {
		t.Fatalf("index holder should be shared per session id")
	}
	if got.ExpiresAt().IsZero() {
		t.Fatalf("session should carry a ttl")
	}

	if err := store.DeleteSession(sess.ID()); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := store.GetSession(sess.ID()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type fixedBuilder struct{ ix *docindex.Index }

func (b fixedBuilder) Build(context.Context, string) (*docindex.Index, error) { return b.ix, nil }

func TestRedisExpiredHoldersAreSwept(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	store := NewWithClient(startRedis(t, ctx), 5*time.Second, nil)

	old, err := store.EnsureSession("", time.Second)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	holder := old.Index()
	holder.Ensure(ctx, fixedBuilder{ix: &docindex.Index{}}, "data", false)
	if holder.Current() == nil || store.HolderCount() != 1 {
		t.Fatalf("expected one holder with an index, got %d", store.HolderCount())
	}

	time.Sleep(1500 * time.Millisecond)
	if _, err := store.EnsureSession("", time.Hour); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if store.HolderCount() != 1 {
		t.Fatalf("expected only the new session's holder, got %d", store.HolderCount())
	}
	if holder.Current() != nil {
		t.Fatalf("expired session should release its index")
	}
}
