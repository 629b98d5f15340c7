package docindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
)

const rrfK = 60 // reciprocal-rank-fusion constant

// Embedder embeds texts, one vector per input.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is an immutable searchable set of chunks: a bleve full-text index
// plus an in-memory vector list. It is never modified after construction.
type Index struct {
	bleve  bleve.Index
	chunks map[string]models.DocumentChunk
	order  []string
	hybrid bool
}

type bleveDoc struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func newIndex(chunks []models.DocumentChunk, hybrid bool) (*Index, error) {
	bi, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create full-text index: %w", err)
	}
	ix := &Index{
		bleve:  bi,
		chunks: make(map[string]models.DocumentChunk, len(chunks)),
		order:  make([]string, 0, len(chunks)),
		hybrid: hybrid,
	}
	batch := bi.NewBatch()
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			_ = bi.Close()
			return nil, fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		if err := batch.Index(c.ID, bleveDoc{Text: c.Text, Source: c.Source}); err != nil {
			_ = bi.Close()
			return nil, fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
		ix.chunks[c.ID] = c
		ix.order = append(ix.order, c.ID)
	}
	if err := bi.Batch(batch); err != nil {
		_ = bi.Close()
		return nil, fmt.Errorf("index batch: %w", err)
	}
	return ix, nil
}

// Len returns the number of chunks.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.order)
}

// Search returns the k chunks most similar to query. Vector similarity is
// fused with BM25 when the index is hybrid. If the query cannot be embedded
// the BM25 ranking is used alone.
func (ix *Index) Search(ctx context.Context, embedder Embedder, query string, k int) []models.SearchHit {
	if ix == nil || len(ix.order) == 0 {
		return nil
	}
	if k <= 0 {
		k = 3
	}

	var qvec []float32
	if embedder != nil {
		vecs, err := embedder.EmbedMany(ctx, []string{query})
		if err == nil && len(vecs) == 1 {
			qvec = vecs[0]
		} else if err != nil {
			notice.Warnf(ctx, "Could not embed the query, using keyword search only: %v", err)
		}
	}

	if qvec == nil {
		hits, err := ix.bm25Search(query, k)
		if err != nil {
			notice.Warnf(ctx, "Document search failed: %v", err)
			return nil
		}
		return hits
	}

	vec := ix.vectorSearch(qvec, k*3)
	if !ix.hybrid {
		return trim(vec, k)
	}
	lex, err := ix.bm25Search(query, k*3)
	if err != nil {
		return trim(vec, k)
	}
	return fuseRRF(lex, vec, k)
}

func (ix *Index) bm25Search(q string, k int) ([]models.SearchHit, error) {
	query := bleve.NewMatchQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := ix.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	out := make([]models.SearchHit, 0, len(res.Hits))
	for i, hit := range res.Hits {
		c := ix.chunks[hit.ID]
		out = append(out, models.SearchHit{
			ChunkID: hit.ID, Source: c.Source, Text: c.Text,
			Score: hit.Score, Rank: i + 1,
		})
	}
	return out, nil
}

func (ix *Index) vectorSearch(q []float32, k int) []models.SearchHit {
	type scored struct {
		id    string
		score float64
	}
	scoreds := make([]scored, 0, len(ix.order))
	for _, id := range ix.order {
		scoreds = append(scoreds, scored{id: id, score: cosine(q, ix.chunks[id].Embedding)})
	}
	sort.SliceStable(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })
	var out []models.SearchHit
	for i, sc := range scoreds {
		if len(out) >= k {
			break
		}
		c := ix.chunks[sc.id]
		out = append(out, models.SearchHit{
			ChunkID: sc.id, Source: c.Source, Text: c.Text,
			Score: sc.score, Rank: i + 1,
		})
	}
	return out
}

func fuseRRF(a, b []models.SearchHit, k int) []models.SearchHit {
	type agg struct {
		item  models.SearchHit
		score float64
		first int
	}
	m := map[string]*agg{}
	seq := 0
	add := func(list []models.SearchHit) {
		for _, h := range list {
			x, ok := m[h.ChunkID]
			if !ok {
				x = &agg{item: h, first: seq}
				m[h.ChunkID] = x
				seq++
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)

	items := make([]*agg, 0, len(m))
	for _, v := range m {
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].first < items[j].first
	})
	n := min(k, len(items))
	out := make([]models.SearchHit, 0, n)
	for i := 0; i < n; i++ {
		h := items[i].item
		h.Score = items[i].score
		h.Rank = i + 1
		out = append(out, h)
	}
	return out
}

func trim(hits []models.SearchHit, k int) []models.SearchHit {
	if len(hits) > k {
		return hits[:k]
	}
	return hits
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
