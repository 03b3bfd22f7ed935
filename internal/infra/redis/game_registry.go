package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-game-service/internal/app"
)

// GameRegistry is a Redis-aware implementation of app.GameRepository.
// Notes:
//   - Sessions stay in a local in-memory map: the state machine with its
//     timers and subscriber channels is inherently in-process.
//   - Redis marks game liveness so operators can see active games and a
//     supervisor could reap abandoned ones.
type GameRegistry struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	games  map[string]*app.Session
}

func NewGameRegistry(client *redis.Client, ttl time.Duration) *GameRegistry {
	return &GameRegistry{
		client: client,
		ttl:    ttl,
		games:  make(map[string]*app.Session),
	}
}

func (r *GameRegistry) Put(id string, session *app.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[id] = session
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(id), "1", r.ttl).Err()
}

func (r *GameRegistry) Get(id string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.games[id]
	return session, ok
}

func (r *GameRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, id)
	_ = r.client.Del(context.Background(), r.key(id)).Err()
}

func (r *GameRegistry) key(id string) string {
	return "quiz:game:" + id
}
