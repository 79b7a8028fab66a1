package ingestion

import (
	"context"
	"errors"
	"hash/fnv"
)

// hashEmbedder produces a deterministic 4-dim vector per text and records
// the batch sizes it was called with.
type hashEmbedder struct {
	batches []int
	failOn  int // 1-based call number that fails; 0 never fails
}

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	h.batches = append(h.batches, len(texts))
	if h.failOn != 0 && len(h.batches) == h.failOn {
		return nil, errors.New("embedding quota exceeded")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		f := fnv.New32a()
		_, _ = f.Write([]byte(t))
		s := f.Sum32()
		out[i] = []float32{float32(s&0xff) + 1, float32(s>>8&0xff) + 1, float32(s>>16&0xff) + 1, float32(s>>24) + 1}
	}
	return out, nil
}

// shortEmbedder returns one vector fewer than requested.
type shortEmbedder struct{}

func (shortEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)-1), nil
}

// staticPages is a PageExtractor returning fixed pages.
type staticPages struct {
	pages []string
	err   error
}

func (s staticPages) Pages(context.Context, string) ([]string, error) { return s.pages, s.err }
