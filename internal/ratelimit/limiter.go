package ratelimit

import "context"

// RateLimiter throttles bursty ingestion per source scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}
