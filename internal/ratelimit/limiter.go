package ratelimit

import "context"

// RateLimiter bounds request throughput per scope. The callback webhook uses
// one scope per calling address.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}
