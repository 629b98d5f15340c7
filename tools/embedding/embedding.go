package embedding

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/finassist/provider"
)

const defaultBatchSize = 64

type Embedding struct {
	provider  provider.Embedder
	batchSize int
}

func NewEmbedding(provider provider.Embedder, batchSize int) *Embedding {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Embedding{
		provider:  provider,
		batchSize: batchSize,
	}
}

// EmbedMany embeds texts in batches and returns one vector per text, in order.
func (e Embedding) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.provider.CreateEmbedding(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors", start, end, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
