package docindex

import (
	"context"
	"sync"
	"sync/atomic"
)

// IndexBuilder builds an index from a folder.
type IndexBuilder interface {
	Build(ctx context.Context, folder string) (*Index, error)
}

// Holder owns the current index of a session. Readers never block and never
// see a partially built index: a new index is published only after it has
// been fully built.
type Holder struct {
	current atomic.Pointer[Index]
	buildMu sync.Mutex
}

// Current returns the published index, or nil.
func (h *Holder) Current() *Index {
	return h.current.Load()
}

// Ensure returns the current index unless there is none or force is set, in
// which case it builds a new one from folder. A failed build returns nil and
// leaves the previous index published.
func (h *Holder) Ensure(ctx context.Context, builder IndexBuilder, folder string, force bool) *Index {
	if ix := h.current.Load(); ix != nil && !force {
		return ix
	}
	h.buildMu.Lock()
	defer h.buildMu.Unlock()
	if ix := h.current.Load(); ix != nil && !force {
		return ix
	}

	ix, err := builder.Build(ctx, folder)
	if err != nil || ix == nil {
		return nil
	}
	// readers may still hold the old index, so it is not closed
	h.current.Store(ix)
	return ix
}

// Reset drops the published index.
func (h *Holder) Reset() {
	h.current.Store(nil)
}
