package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-game-service/internal/quizdata"
)

// SourceCache caches fetched question payloads with a TTL to avoid repeated
// file or network reads when games restart. A non-positive TTL disables
// caching entirely.
type SourceCache struct {
	next  quizdata.Fetcher
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPayload
}

type cachedPayload struct {
	payload   []byte
	expiresAt time.Time
}

func NewSourceCache(next quizdata.Fetcher, ttl time.Duration) *SourceCache {
	return &SourceCache{
		next:  next,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedPayload),
	}
}

func (c *SourceCache) Fetch(ctx context.Context, source string) ([]byte, error) {
	if c.ttl <= 0 {
		return c.next.Fetch(ctx, source)
	}
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[source]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.payload, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(source, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[source]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.payload, nil
		}
		c.mu.RUnlock()

		payload, err := c.next.Fetch(ctx, source)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[source] = cachedPayload{
			payload:   payload,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *SourceCache) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
