package memory

import (
	"sync"

	"quiz-game-service/internal/app"
)

// GameStore is an in-memory implementation of app.GameRepository.
type GameStore struct {
	mu    sync.RWMutex
	games map[string]*app.Session
}

func NewGameStore() *GameStore {
	return &GameStore{games: make(map[string]*app.Session)}
}

func (s *GameStore) Put(id string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[id] = session
}

func (s *GameStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.games[id]
	return session, ok
}

func (s *GameStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}
