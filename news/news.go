package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/finassist/config"
	"github.com/mohammad-safakhou/finassist/internal/helpers"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/news/newsapi"
)

const (
	rateLimitMessage = "News API rate limit exceeded. Please try again later."
	genericMessage   = "An error occurred while fetching news. Please try again later."

	// NewsAPI keeps taken-down articles in results under this title.
	removedTitle = "[Removed]"
)

// Searcher is the NewsAPI call the retriever depends on.
type Searcher interface {
	Everything(ctx context.Context, q newsapi.Query) ([]newsapi.Article, error)
}

// Retriever fetches recent finance headlines
type Retriever struct {
	NewsClient Searcher
	Query      string
	Language   string
	SortBy     string
	PageSize   int
	Lookback   time.Duration

	now func() time.Time
}

// NewRetriever creates a new news retriever
func NewRetriever(newsClient Searcher, cfg config.NewsAPIConfig) *Retriever {
	return &Retriever{
		NewsClient: newsClient,
		Query:      cfg.Query,
		Language:   cfg.Language,
		SortBy:     cfg.SortBy,
		PageSize:   cfg.PageSize,
		Lookback:   cfg.Lookback,
		now:        time.Now,
	}
}

// FinanceNews returns up to n headlines from the lookback window. Failures
// raise a notice and yield an empty list. n <= 0 uses the configured page size.
func (r *Retriever) FinanceNews(ctx context.Context, n int) []models.Article {
	if n <= 0 {
		n = r.PageSize
	}
	if n <= 0 {
		n = 3
	}
	query := r.Query
	if query == "" {
		query = "finance OR economy"
	}
	lookback := r.Lookback
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	now := time.Now
	if r.now != nil {
		now = r.now
	}

	to := now()
	articles, err := r.NewsClient.Everything(ctx, newsapi.Query{
		Q:        query,
		From:     to.Add(-lookback),
		To:       to,
		Language: r.Language,
		SortBy:   r.SortBy,
		PageSize: n,
	})
	switch {
	case errors.Is(err, newsapi.ErrRateLimited):
		notice.Warnf(ctx, rateLimitMessage)
		return []models.Article{}
	case errors.Is(err, newsapi.ErrNoCredential):
		notice.Errorf(ctx, "Missing News API key (NEWS_API_KEY).")
		return []models.Article{}
	case err != nil:
		notice.Errorf(ctx, genericMessage)
		return []models.Article{}
	}

	out := make([]models.Article, 0, len(articles))
	seen := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		if len(out) == n {
			break
		}
		title := helpers.PlainText(a.Title)
		if title == "" || title == removedTitle {
			continue
		}
		key := a.URL
		if canon, err := helpers.CanonicalURL(a.URL); err == nil {
			key = canon
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.Article{
			Title:       title,
			URL:         a.URL,
			Source:      helpers.PlainText(a.Source.Name),
			PublishedAt: a.PublishedAt,
		})
	}
	return out
}

// Markdown renders articles as a numbered list of links.
func Markdown(articles []models.Article) string {
	if len(articles) == 0 {
		return "_No news available._\n"
	}
	var b strings.Builder
	b.WriteString("## Financial News\n\n")
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. [%s](%s)", i+1, a.Title, a.URL)
		if a.Source != "" {
			fmt.Fprintf(&b, " _(%s)_", a.Source)
		}
		b.WriteString("\n")
	}
	return b.String()
}
