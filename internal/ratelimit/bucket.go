package ratelimit

import (
	"sync"
	"time"
)

// bucket is a token bucket for a single scope key. Tokens regenerate
// passively: elapsed time since lastRefill is converted into whole tokens
// at a fixed rate before every check. Invariant: 0 <= tokens <= maxTokens
// at every observation point.
type bucket struct {
	mu             sync.Mutex
	tokens         int
	lastRefill     time.Time
	maxTokens      int
	refillInterval time.Duration
}

// newBucket creates a full bucket. The refill interval is the time to
// regenerate one token: window / maxTokens.
func newBucket(maxTokens int, window time.Duration, now time.Time) *bucket {
	if maxTokens < 1 {
		maxTokens = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &bucket{
		tokens:         maxTokens,
		lastRefill:     now,
		maxTokens:      maxTokens,
		refillInterval: window / time.Duration(maxTokens),
	}
}

// refillLocked adds whole regenerated tokens, capped at maxTokens. The
// refill anchor advances together with the token count: by exactly the
// credited interval so partial intervals are never lost, and to now when
// the bucket saturates.
func (b *bucket) refillLocked(now time.Time) {
	if b.tokens >= b.maxTokens {
		b.lastRefill = now
		return
	}

	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.refillInterval {
		return
	}

	added := int(elapsed / b.refillInterval)
	b.tokens += added
	if b.tokens >= b.maxTokens {
		b.tokens = b.maxTokens
		b.lastRefill = now
		return
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(added) * b.refillInterval)
}

// tryConsume attempts to take one token. It returns whether a token was
// consumed and the tokens remaining afterwards.
func (b *bucket) tryConsume(now time.Time) (consumed bool, remaining int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)

	if b.tokens <= 0 {
		return false, 0
	}

	b.tokens--
	return true, b.tokens
}

// refund returns a previously consumed token, capped at maxTokens.
func (b *bucket) refund() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tokens < b.maxTokens {
		b.tokens++
	}
}

// snapshot reports the projected token count without mutating the bucket.
func (b *bucket) snapshot(now time.Time) (remaining, maxTokens int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	projected := b.tokens
	if projected < b.maxTokens {
		elapsed := now.Sub(b.lastRefill)
		if elapsed > 0 {
			projected += int(elapsed / b.refillInterval)
			if projected > b.maxTokens {
				projected = b.maxTokens
			}
		}
	}

	return projected, b.maxTokens
}

// nextToken reports how long until at least one token is available.
func (b *bucket) nextToken(now time.Time) time.Duration {
	remaining, _ := b.snapshot(now)
	if remaining > 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	wait := b.refillInterval - now.Sub(b.lastRefill)
	if wait < 0 {
		wait = 0
	}
	return wait
}
