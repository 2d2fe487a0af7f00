package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateGate serializes all LLM calls at a fixed minimum spacing of
// 60/RPM seconds. Burst is pinned to 1, so there is no burst credit:
// one call may proceed immediately, every later call waits out the full
// interval. Strict serialization over throughput is deliberate.
type RateGate struct {
	limiter *rate.Limiter
}

// NewRateGate creates a gate for the given requests-per-minute budget.
func NewRateGate(rpm int) (*RateGate, error) {
	if rpm <= 0 {
		return nil, fmt.Errorf("rate limit RPM must be positive, got %d", rpm)
	}
	interval := time.Minute / time.Duration(rpm)
	return &RateGate{limiter: rate.NewLimiter(rate.Every(interval), 1)}, nil
}

// Wait blocks until the next call slot opens or the context is done.
func (g *RateGate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
