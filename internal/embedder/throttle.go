package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/54b3r/desfrut-go/internal/rag"
)

// Throttled wraps a rag.Embedder with a client-side token bucket so bulk
// ingestion stays under the provider's request rate limit. Each Embed call
// consumes one token regardless of batch size.
type Throttled struct {
	// next is the wrapped embedder.
	next rag.Embedder
	// limiter paces calls to next.
	limiter *rate.Limiter
}

// NewThrottled returns an embedder allowing at most rps calls per second
// with a burst of one. rps must be positive.
func NewThrottled(next rag.Embedder, rps float64) (*Throttled, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("embedder: throttle rate must be positive, got %v", rps)
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(rps), 1)}, nil
}

// Embed waits for a token, then delegates to the wrapped embedder.
func (t *Throttled) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedder: throttle wait: %w", err)
	}
	return t.next.Embed(ctx, texts)
}
