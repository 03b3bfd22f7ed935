package leaderboard

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"time"

	"quiz-game-service/internal/domain"
)

// KV is the durable storage collaborator. Get returns (nil, nil) when the
// key is absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

const (
	// DefaultKey is the logical storage key for the ranked entry list.
	DefaultKey = "quizLeaderboard"
	// DefaultSize bounds the persisted list.
	DefaultSize = 10
	// AnonymousName replaces blank player names.
	AnonymousName = "Anonymous"
	// maxNameLen clips overlong player names.
	maxNameLen = 20
)

// Candidate is a score submitted for ranking; the store stamps everything else.
type Candidate struct {
	PlayerName     string
	Score          int
	TotalQuestions int
	Percentage     int
}

// Store persists a bounded, ranked list of high scores. Every mutation
// re-reads persisted state first, so the store itself holds no list state.
type Store struct {
	kv   KV
	key  string
	size int
	now  func() time.Time
}

func New(kv KV) *Store {
	return &Store{kv: kv, key: DefaultKey, size: DefaultSize, now: time.Now}
}

// NewWithOptions overrides the storage key and list bound; zero values keep
// the defaults.
func NewWithOptions(kv KV, key string, size int) *Store {
	s := New(kv)
	if key != "" {
		s.key = key
	}
	if size > 0 {
		s.size = size
	}
	return s
}

// NewWithClock is test-only for deterministic id and timestamp stamping.
func NewWithClock(kv KV, now func() time.Time) *Store {
	s := New(kv)
	s.now = now
	return s
}

// Submit stamps and inserts a candidate, re-ranks the full list, truncates
// it to the bound and persists the result. Storage failures leave the
// persisted state unchanged and surface as *domain.StorageError.
func (s *Store) Submit(ctx context.Context, c Candidate) (domain.LeaderboardEntry, error) {
	entries, err := s.read(ctx)
	if err != nil {
		return domain.LeaderboardEntry{}, &domain.StorageError{Op: "read", Err: err}
	}

	now := s.now()
	entry := domain.LeaderboardEntry{
		ID:             s.uniqueID(entries, now),
		PlayerName:     cleanName(c.PlayerName),
		Score:          c.Score,
		TotalQuestions: c.TotalQuestions,
		Percentage:     c.Percentage,
		Date:           now.Format("1/2/2006"),
		Time:           now.Format("3:04:05 PM"),
	}

	entries = append(entries, entry)
	rank(entries)
	if len(entries) > s.size {
		entries = entries[:s.size]
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return domain.LeaderboardEntry{}, &domain.StorageError{Op: "encode", Err: err}
	}
	if err := s.kv.Set(ctx, s.key, payload); err != nil {
		return domain.LeaderboardEntry{}, &domain.StorageError{Op: "write", Err: err}
	}
	return entry, nil
}

// List returns the current persisted ranking. Absent or corrupt data is an
// empty list, not an error.
func (s *Store) List(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	entries, err := s.read(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "read", Err: err}
	}
	return entries, nil
}

// Clear removes all entries and reports whether it succeeded.
func (s *Store) Clear(ctx context.Context) bool {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		log.Printf("clear leaderboard: %v", err)
		return false
	}
	return true
}

// Qualifies reports whether a percentage would make the list: always when
// the list is not full, otherwise only when strictly above the last-ranked
// entry's percentage.
func (s *Store) Qualifies(ctx context.Context, percentage int) bool {
	entries, err := s.List(ctx)
	if err != nil {
		// Storage trouble should not block the save prompt.
		return true
	}
	if len(entries) < s.size {
		return true
	}
	return percentage > entries[len(entries)-1].Percentage
}

func (s *Store) read(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Printf("corrupt leaderboard data, treating as empty: %v", err)
		return []domain.LeaderboardEntry{}, nil
	}
	return entries, nil
}

// uniqueID derives an id from the creation timestamp, bumping past
// collisions so ids stay unique within the store.
func (s *Store) uniqueID(entries []domain.LeaderboardEntry, now time.Time) int64 {
	id := now.UnixMilli()
	for {
		taken := false
		for _, e := range entries {
			if e.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
		id++
	}
}

// rank sorts by percentage descending, ties broken by score descending.
func rank(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Percentage != entries[j].Percentage {
			return entries[i].Percentage > entries[j].Percentage
		}
		return entries[i].Score > entries[j].Score
	})
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return AnonymousName
	}
	if runes := []rune(name); len(runes) > maxNameLen {
		return string(runes[:maxNameLen])
	}
	return name
}
