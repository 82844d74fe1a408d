package qualify

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out calls to the scoring service
type Pacer interface {
	Wait(ctx context.Context) error
}

// FixedDelay lets the first call through immediately and then enforces a
// minimum gap between consecutive calls. A zero delay never blocks.
type FixedDelay struct {
	limiter *rate.Limiter
}

func NewFixedDelay(delay time.Duration) *FixedDelay {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &FixedDelay{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the delay has passed since the previous call. It
// returns an error without waiting when ctx is done or its deadline would
// pass first.
func (p *FixedDelay) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
