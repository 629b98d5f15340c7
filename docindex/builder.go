package docindex

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/finassist/config"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/internal/telemetry"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/provider"
)

// ErrNoDocuments is returned when the folder holds no document with text.
var ErrNoDocuments = errors.New("no documents with extractable text")

var defaultExtensions = []string{".pdf", ".txt", ".md", ".html", ".htm"}

// Builder turns a folder of documents into an Index.
type Builder struct {
	Embedder     Embedder
	ChunkSize    int
	ChunkOverlap int
	Extensions   []string
	Hybrid       bool
	Metrics      *telemetry.Metrics
	Logger       *log.Logger
}

func NewBuilder(embedder Embedder, cfg config.DocumentsConfig, metrics *telemetry.Metrics) *Builder {
	return &Builder{
		Embedder:     embedder,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Extensions:   cfg.Extensions,
		Hybrid:       cfg.Hybrid,
		Metrics:      metrics,
		Logger:       log.New(os.Stdout, "[INDEX] ", log.LstdFlags),
	}
}

type document struct {
	source string
	text   string
}

// Build reads every recognized document directly inside folder, chunks and
// embeds it and returns a new index. Unreadable files are skipped with a
// warning. Any embedding or indexing failure aborts the whole build.
func (b *Builder) Build(ctx context.Context, folder string) (*Index, error) {
	docs, err := b.readFolder(ctx, folder)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		notice.Warnf(ctx, "No documents found in %s or failed to extract text from them.", folder)
		return nil, ErrNoDocuments
	}

	var chunks []models.DocumentChunk
	for _, d := range docs {
		for i, text := range MakeChunks(d.text, b.ChunkSize, b.ChunkOverlap) {
			chunks = append(chunks, models.DocumentChunk{
				ID:     chunkID(d.source, i),
				Source: d.source,
				Index:  i,
				Text:   text,
			})
		}
	}
	b.logf("extracted %d chunks from %d documents in %s", len(chunks), len(docs), folder)

	if b.Embedder == nil {
		notice.Errorf(ctx, "Missing OPENAI_API_KEY.")
		return nil, provider.ErrNoCredential
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := b.Embedder.EmbedMany(ctx, texts)
	if errors.Is(err, provider.ErrNoCredential) {
		notice.Errorf(ctx, "Missing OPENAI_API_KEY.")
		return nil, err
	}
	if err == nil && len(vecs) != len(chunks) {
		err = fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(vecs))
	}
	if err != nil {
		notice.Errorf(ctx, "Error creating embeddings or vector store: %v", err)
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}

	ix, err := newIndex(chunks, b.Hybrid)
	if err != nil {
		notice.Errorf(ctx, "Error creating embeddings or vector store: %v", err)
		return nil, err
	}
	b.Metrics.IndexBuilt(ix.Len())
	b.logf("built index with %d chunks", ix.Len())
	return ix, nil
}

func (b *Builder) readFolder(ctx context.Context, folder string) ([]document, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			notice.Warnf(ctx, "Document folder %s does not exist.", folder)
			return nil, ErrNoDocuments
		}
		notice.Warnf(ctx, "Could not read document folder %s: %v", folder, err)
		return nil, ErrNoDocuments
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []document
	for _, e := range entries {
		if e.IsDir() || !b.recognized(e.Name()) {
			continue
		}
		text, err := Extract(filepath.Join(folder, e.Name()))
		if err != nil {
			notice.Warnf(ctx, "Error processing %s: %v", e.Name(), err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, document{source: e.Name(), text: text})
	}
	return docs, nil
}

func (b *Builder) recognized(name string) bool {
	exts := b.Extensions
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func (b *Builder) logf(format string, args ...any) {
	if b.Logger != nil {
		b.Logger.Printf(format, args...)
	}
}

func chunkID(source string, i int) string {
	sum := sha1.Sum([]byte(source + "#" + strconv.Itoa(i)))
	return hex.EncodeToString(sum[:])
}
