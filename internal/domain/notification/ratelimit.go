package notification

import "context"

// RecipientRateLimiter defines the contract for per-chat rate limiting.
// Implementations live in infra/ratelimit/.
type RecipientRateLimiter interface {
	// Allow checks whether a message can be sent to the given chat.
	// Returns true if the dispatch is allowed, false if rate limited.
	Allow(ctx context.Context, chatID int64) (bool, error)
}
