package app

import (
	"context"
	"log"

	"github.com/google/uuid"

	"quiz-game-service/internal/domain"
	"quiz-game-service/internal/leaderboard"
	"quiz-game-service/internal/quizdata"
)

// GameRepository abstracts how active game sessions are tracked (in-memory,
// Redis-marked, etc).
type GameRepository interface {
	Put(id string, session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// GameConfig fixes the question source and play options for all games the
// service creates.
type GameConfig struct {
	Source  string
	Load    quizdata.LoadOptions
	Retry   quizdata.RetryPolicy
	Session SessionOptions
}

// GameService contains the quiz game use cases: it owns game lifecycles,
// feeds loaded questions into sessions, and fronts the leaderboard store.
type GameService struct {
	games  GameRepository
	loader *quizdata.Loader
	board  *leaderboard.Store
	cfg    GameConfig
}

func NewGameService(games GameRepository, loader *quizdata.Loader, board *leaderboard.Store, cfg GameConfig) *GameService {
	return &GameService{games: games, loader: loader, board: board, cfg: cfg}
}

// NewGame creates a fresh ready-state session and registers it.
func (s *GameService) NewGame() Snapshot {
	session := NewSession(uuid.NewString(), s.cfg.Session)
	s.games.Put(session.ID(), session)
	return session.Snapshot()
}

// Start loads the configured question set and begins play. The session never
// performs retrieval itself; it consumes the already-loaded sequence.
func (s *GameService) Start(ctx context.Context, gameID string) (Snapshot, error) {
	session, ok := s.games.Get(gameID)
	if !ok {
		return Snapshot{}, domain.ErrGameNotFound
	}
	if session.Status() != domain.StatusReady {
		return session.Snapshot(), domain.ErrNotReady
	}

	result, err := quizdata.LoadWithRetry(ctx, s.loader, s.cfg.Source, s.cfg.Load, s.cfg.Retry)
	if err != nil {
		return session.Snapshot(), err
	}
	return session.Start(result.Questions)
}

// Answer records a selection (or domain.TimeoutAnswer) for the current question.
func (s *GameService) Answer(gameID string, selected int) (domain.AnswerRecord, Snapshot, error) {
	session, ok := s.games.Get(gameID)
	if !ok {
		return domain.AnswerRecord{}, Snapshot{}, domain.ErrGameNotFound
	}
	return session.Answer(selected)
}

// Restart resets a game to ready.
func (s *GameService) Restart(gameID string) (Snapshot, error) {
	session, ok := s.games.Get(gameID)
	if !ok {
		return Snapshot{}, domain.ErrGameNotFound
	}
	return session.Restart(), nil
}

// SubmitHighScore records the finished game's result on the leaderboard,
// at most once per game.
func (s *GameService) SubmitHighScore(ctx context.Context, gameID, playerName string) (domain.LeaderboardEntry, error) {
	session, ok := s.games.Get(gameID)
	if !ok {
		return domain.LeaderboardEntry{}, domain.ErrGameNotFound
	}
	stats, err := session.Stats()
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	if err := session.markScoreSaved(); err != nil {
		return domain.LeaderboardEntry{}, err
	}

	entry, err := s.board.Submit(ctx, leaderboard.Candidate{
		PlayerName:     playerName,
		Score:          stats.Score,
		TotalQuestions: stats.TotalQuestions,
		Percentage:     stats.Percentage,
	})
	if err != nil {
		// Leave the game free to retry after a storage hiccup.
		session.unmarkScoreSaved()
		return domain.LeaderboardEntry{}, err
	}
	return entry, nil
}

// SkipHighScore declines the save prompt for a finished game.
func (s *GameService) SkipHighScore(gameID string) error {
	session, ok := s.games.Get(gameID)
	if !ok {
		return domain.ErrGameNotFound
	}
	return session.markScoreSaved()
}

// QualifiesForLeaderboard reports whether the finished game's percentage
// would make the board.
func (s *GameService) QualifiesForLeaderboard(ctx context.Context, gameID string) (bool, error) {
	session, ok := s.games.Get(gameID)
	if !ok {
		return false, domain.ErrGameNotFound
	}
	stats, err := session.Stats()
	if err != nil {
		return false, err
	}
	return s.board.Qualifies(ctx, stats.Percentage), nil
}

// Leaderboard returns the persisted ranking.
func (s *GameService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return s.board.List(ctx)
}

// ClearLeaderboard removes all persisted entries.
func (s *GameService) ClearLeaderboard(ctx context.Context) bool {
	return s.board.Clear(ctx)
}

// Subscribe returns a channel of state snapshots for a game.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(gameID string) (<-chan Snapshot, func(), error) {
	session, ok := s.games.Get(gameID)
	if !ok {
		return nil, nil, domain.ErrGameNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// EndGame drops a game from the registry, superseding any pending timers.
func (s *GameService) EndGame(gameID string) {
	session, ok := s.games.Get(gameID)
	if !ok {
		return
	}
	session.Restart()
	s.games.Delete(gameID)
	log.Printf("game %s ended", gameID)
}
