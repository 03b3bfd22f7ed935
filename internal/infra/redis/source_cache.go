package redis

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-game-service/internal/quizdata"
)

// SourceCache caches fetched question payloads in Redis so restarts and
// multiple service instances share one upstream fetch. A non-positive TTL
// disables caching entirely.
// Payloads are stored as: SET quizdata:{source} {payload} EX ttl
type SourceCache struct {
	client *redis.Client
	next   quizdata.Fetcher
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewSourceCache(client *redis.Client, next quizdata.Fetcher, ttl time.Duration) *SourceCache {
	return &SourceCache{
		client: client,
		next:   next,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *SourceCache) Fetch(ctx context.Context, source string) ([]byte, error) {
	if c.ttl <= 0 {
		return c.next.Fetch(ctx, source)
	}
	key := c.key(source)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil && len(payload) > 0 {
		return payload, nil
	}

	result, err, _ := c.sf.Do(source, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it. A cache miss
		// and redis trouble both fall through to the upstream fetch.
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil && len(payload) > 0 {
			return payload, nil
		}

		payload, err = c.next.Fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, key, payload, c.ttlWithJitter()).Err()
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *SourceCache) key(source string) string {
	return "quizdata:" + source
}

func (c *SourceCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
