package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/mohammad-safakhou/finassist/config"
	"github.com/mohammad-safakhou/finassist/docindex"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/internal/telemetry"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/provider"
	"github.com/mohammad-safakhou/finassist/session"
)

var tickerPattern = regexp.MustCompile(`(?i)\b(?:price|chart)\s+(?:of\s+)?([A-Za-z0-9.\-]+)\b`)

// ExtractTicker finds a "price of X" or "chart X" request in text and
// returns X upper-cased.
func ExtractTicker(text string) (string, bool) {
	m := tickerPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// HistorySource returns daily closing prices.
type HistorySource interface {
	DailyCloses(ctx context.Context, ticker, rng string) ([]models.ChartPoint, error)
}

type Responder struct {
	Generator     provider.Generator
	Embedder      docindex.Embedder
	Prices        HistorySource
	TopK          int
	HistoryRange  string
	SystemPrompt  string
	FallbackReply string
	Metrics       *telemetry.Metrics
	Logger        *log.Logger

	now func() time.Time
}

func NewResponder(gen provider.Generator, embedder docindex.Embedder, prices HistorySource, cfg config.ChatConfig, metrics *telemetry.Metrics) *Responder {
	return &Responder{
		Generator:     gen,
		Embedder:      embedder,
		Prices:        prices,
		TopK:          cfg.TopK,
		HistoryRange:  cfg.HistoryRange,
		SystemPrompt:  cfg.SystemPrompt,
		FallbackReply: cfg.FallbackReply,
		Metrics:       metrics,
		Logger:        log.New(os.Stdout, "[CHAT] ", log.LstdFlags),
		now:           time.Now,
	}
}

// Respond answers one utterance and appends the user turn and then the
// assistant turn to the session transcript. Provider failures never fail the
// turn: a missing chart is reported as a notice and a failed generation
// yields the fallback reply.
func (r *Responder) Respond(ctx context.Context, sess session.Session, utterance string) (models.ChatTurn, models.ChatTurn, error) {
	ctx = notice.NewContext(ctx, sess)
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	user := models.ChatTurn{Role: models.RoleUser, Content: utterance, CreatedAt: now()}

	chart := r.chart(ctx, utterance)
	hits := r.retrieve(ctx, sess, utterance)

	notes, err := sess.Notes()
	if err != nil {
		r.logf("[WARN] read notes for session %s: %v", sess.ID(), err)
	}

	reply, outcome := r.generate(ctx, buildPrompt(notes, hits, utterance))
	r.Metrics.ChatTurn(outcome)

	assistant := models.ChatTurn{Role: models.RoleAssistant, Content: reply, Chart: chart, CreatedAt: now()}
	if err := sess.AppendTurns(user, assistant); err != nil {
		return user, assistant, fmt.Errorf("append turns: %w", err)
	}
	return user, assistant, nil
}

func (r *Responder) chart(ctx context.Context, utterance string) []models.ChartPoint {
	ticker, ok := ExtractTicker(utterance)
	if !ok || r.Prices == nil {
		return nil
	}
	rng := r.HistoryRange
	if rng == "" {
		rng = "1y"
	}
	points, err := r.Prices.DailyCloses(ctx, ticker, rng)
	if err != nil {
		notice.Warnf(ctx, "Error retrieving data for %s: %v", ticker, err)
		return nil
	}
	if len(points) == 0 {
		notice.Infof(ctx, "No data found for ticker %s", ticker)
		return nil
	}
	return points
}

func (r *Responder) retrieve(ctx context.Context, sess session.Session, utterance string) []models.SearchHit {
	ix := sess.Index().Current()
	if ix == nil {
		return nil
	}
	k := r.TopK
	if k <= 0 {
		k = 3
	}
	return ix.Search(ctx, r.Embedder, utterance, k)
}

func (r *Responder) generate(ctx context.Context, prompt string) (string, string) {
	fallback := r.FallbackReply
	if fallback == "" {
		fallback = "Sorry, I could not generate a response right now."
	}
	if r.Generator == nil {
		notice.Errorf(ctx, "Missing OPENAI_API_KEY.")
		return fallback, "fallback"
	}
	system := r.SystemPrompt
	if system == "" {
		system = config.DefaultSystemPrompt
	}
	reply, err := r.Generator.Complete(ctx, system, prompt)
	switch {
	case errors.Is(err, provider.ErrNoCredential):
		notice.Errorf(ctx, "Missing OPENAI_API_KEY.")
		return fallback, "fallback"
	case err != nil:
		notice.Errorf(ctx, "Error generating a response: %v", err)
		return fallback, "fallback"
	case strings.TrimSpace(reply) == "":
		notice.Errorf(ctx, "Error generating a response: empty reply")
		return fallback, "fallback"
	}
	return strings.TrimSpace(reply), "ok"
}

func buildPrompt(notes string, hits []models.SearchHit, utterance string) string {
	var b strings.Builder
	if strings.TrimSpace(notes) != "" {
		b.WriteString("User's financial notes:\n")
		b.WriteString(strings.TrimSpace(notes))
		b.WriteString("\n\n")
	}
	if len(hits) > 0 {
		b.WriteString("Relevant document excerpts:\n")
		for i, h := range hits {
			fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, h.Source, strings.TrimSpace(h.Text))
		}
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(utterance)
	return b.String()
}

func (r *Responder) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
