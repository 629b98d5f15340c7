package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/session/inmemory"
)

func TestExtractTicker(t *testing.T) {
	cases := map[string]string{
		"price of TSLA":               "TSLA",
		"What is the price of aapl?":  "AAPL",
		"show me the chart BRK.B now": "BRK.B",
		"Chart of btc-usd":            "BTC-USD",
	}
	for in, want := range cases {
		got, ok := ExtractTicker(in)
		if !ok || got != want {
			t.Fatalf("%q: expected %q, got %q %v", in, want, got, ok)
		}
	}
	if got, ok := ExtractTicker("What about my budget?"); ok {
		t.Fatalf("expected no ticker, got %q", got)
	}
}

type fakeGen struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeGen) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

type fakePrices struct {
	points []models.ChartPoint
	err    error
	calls  int
}

func (f *fakePrices) DailyCloses(_ context.Context, _, _ string) ([]models.ChartPoint, error) {
	f.calls++
	return f.points, f.err
}

func TestRespondWithChart(t *testing.T) {
	sess, _ := inmemory.NewInMemorySessionStore(nil).EnsureSession("", time.Hour)
	_ = sess.SetNotes("I hold TSLA")
	gen := &fakeGen{reply: "TSLA is up."}
	prices := &fakePrices{points: []models.ChartPoint{{Date: "2024-01-02", Close: 248}}}
	r := &Responder{Generator: gen, Prices: prices}

	_, assistant, err := r.Respond(context.Background(), sess, "price of TSLA")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if assistant.Content != "TSLA is up." || len(assistant.Chart) != 1 {
		t.Fatalf("unexpected assistant turn %+v", assistant)
	}
	if !strings.Contains(gen.prompt, "I hold TSLA") || !strings.HasSuffix(gen.prompt, "Question: price of TSLA") {
		t.Fatalf("unexpected prompt %q", gen.prompt)
	}
	turns, _ := sess.Transcript()
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Fatalf("unexpected transcript %+v", turns)
	}
}

func TestRespondWithoutTicker(t *testing.T) {
	sess, _ := inmemory.NewInMemorySessionStore(nil).EnsureSession("", time.Hour)
	prices := &fakePrices{}
	r := &Responder{Generator: &fakeGen{reply: "Spend less."}, Prices: prices}

	_, assistant, _ := r.Respond(context.Background(), sess, "What about my budget?")
	if assistant.Chart != nil || prices.calls != 0 {
		t.Fatalf("no chart expected, got %+v after %d calls", assistant.Chart, prices.calls)
	}
}

func TestRespondChartFailuresAreNotices(t *testing.T) {
	sess, _ := inmemory.NewInMemorySessionStore(nil).EnsureSession("", time.Hour)
	r := &Responder{Generator: &fakeGen{reply: "ok"}, Prices: &fakePrices{}}
	_, assistant, _ := r.Respond(context.Background(), sess, "chart of ZZZZ")
	if assistant.Chart != nil {
		t.Fatalf("expected no chart")
	}
	r.Prices = &fakePrices{err: errors.New("timeout")}
	_, _, _ = r.Respond(context.Background(), sess, "chart of ZZZZ")

	notices, _ := sess.DrainNotices()
	if len(notices) != 2 || notices[0].Message != "No data found for ticker ZZZZ" ||
		notices[1].Message != "Error retrieving data for ZZZZ: timeout" {
		t.Fatalf("unexpected notices %+v", notices)
	}
	turns, _ := sess.Transcript()
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
}

func TestRespondGenerationFailure(t *testing.T) {
	sess, _ := inmemory.NewInMemorySessionStore(nil).EnsureSession("", time.Hour)
	r := &Responder{Generator: &fakeGen{err: errors.New("503")}}

	for i := 0; i < 3; i++ {
		_, assistant, err := r.Respond(context.Background(), sess, "hello")
		if err != nil {
			t.Fatalf("Respond: %v", err)
		}
		if assistant.Content != "Sorry, I could not generate a response right now." {
			t.Fatalf("expected placeholder, got %q", assistant.Content)
		}
	}
	turns, _ := sess.Transcript()
	if len(turns) != 6 {
		t.Fatalf("transcript should grow by two per turn, got %d", len(turns))
	}
	notices, _ := sess.DrainNotices()
	if len(notices) != 3 || notices[0].Level != notice.Error {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestRespondMissingGenerator(t *testing.T) {
	sess, _ := inmemory.NewInMemorySessionStore(nil).EnsureSession("", time.Hour)
	r := &Responder{}
	_, assistant, _ := r.Respond(context.Background(), sess, "hi")
	if assistant.Content == "" {
		t.Fatalf("expected a placeholder reply")
	}
	notices, _ := sess.DrainNotices()
	if len(notices) != 1 || notices[0].Message != "Missing OPENAI_API_KEY." {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestBuildPromptIncludesExcerpts(t *testing.T) {
	p := buildPrompt("", []models.SearchHit{{Source: "guide.pdf", Text: "Pay yourself first."}}, "how to save?")
	if !strings.Contains(p, "[1] (guide.pdf) Pay yourself first.") || strings.Contains(p, "financial notes") {
		t.Fatalf("unexpected prompt %q", p)
	}
}
