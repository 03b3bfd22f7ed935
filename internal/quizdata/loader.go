package quizdata

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sort"
	"time"

	"quiz-game-service/internal/domain"
)

// Fetcher retrieves the raw payload for a source identifier. Implementations
// cover local files, HTTP endpoints, database rows and caching wrappers.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// LoadOptions tune normalization of a fetched question set.
type LoadOptions struct {
	// Category restricts a categorized document to one category. When the
	// named category is absent, all categories are flattened instead.
	Category string
	// Shuffle randomizes category iteration and final question order.
	Shuffle bool
	// MaxQuestions truncates the validated pool after shuffling. Zero keeps
	// the whole pool.
	MaxQuestions int
}

// DefaultMaxQuestions is the default truncation applied by callers that do
// not configure their own limit.
const DefaultMaxQuestions = 10

// LoadResult is the outcome of a successful load.
type LoadResult struct {
	Questions  []domain.Question
	Categories []string
	Metadata   map[string]any
}

// Loader normalizes heterogeneous question documents into a validated,
// uniformly-identified question list. It is stateless per call.
type Loader struct {
	fetcher Fetcher
	rnd     *rand.Rand
}

func NewLoader(fetcher Fetcher) *Loader {
	return &Loader{
		fetcher: fetcher,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewLoaderWithRand is test-only for deterministic shuffles.
func NewLoaderWithRand(fetcher Fetcher, rnd *rand.Rand) *Loader {
	return &Loader{fetcher: fetcher, rnd: rnd}
}

// rawDocument covers the two object-shaped source formats. Bare arrays are
// handled separately.
type rawDocument struct {
	Categories map[string]rawCategory `json:"categories"`
	Questions  []json.RawMessage      `json:"questions"`
	Metadata   map[string]any         `json:"metadata"`
}

type rawCategory struct {
	Questions []json.RawMessage `json:"questions"`
}

// Load fetches and normalizes a question set. Invalid candidates are dropped;
// a load with zero surviving questions fails. All failures are reported as a
// single *domain.LoadError wrapping the cause.
func (l *Loader) Load(ctx context.Context, source string, opts LoadOptions) (*LoadResult, error) {
	raw, err := l.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, &domain.LoadError{Source: source, Err: err}
	}

	candidates, categories, metadata, err := normalize(raw, opts.Category, l.categoryOrder(opts))
	if err != nil {
		return nil, &domain.LoadError{Source: source, Err: err}
	}

	questions := make([]domain.Question, 0, len(candidates))
	for _, rawQuestion := range candidates {
		c, ok := parseCandidate(rawQuestion)
		if !ok || !validateCandidate(c) {
			log.Printf("dropping invalid question from %s: %s", source, truncateForLog(rawQuestion))
			continue
		}
		questions = append(questions, buildQuestion(c, len(questions)+1))
	}
	if len(questions) == 0 {
		return nil, &domain.LoadError{Source: source, Err: domain.ErrNoValidQuestions}
	}

	if opts.Shuffle {
		l.rnd.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}
	if opts.MaxQuestions > 0 && len(questions) > opts.MaxQuestions {
		questions = questions[:opts.MaxQuestions]
	}

	return &LoadResult{Questions: questions, Categories: categories, Metadata: metadata}, nil
}

// categoryOrder returns the iteration order for category flattening: sorted
// for reproducibility, shuffled when the caller asked for it.
func (l *Loader) categoryOrder(opts LoadOptions) func([]string) {
	return func(names []string) {
		sort.Strings(names)
		if opts.Shuffle {
			l.rnd.Shuffle(len(names), func(i, j int) {
				names[i], names[j] = names[j], names[i]
			})
		}
	}
}

// normalize extracts the candidate list following the priority order:
// categories mapping, flat questions array, bare array.
func normalize(raw []byte, category string, orderCategories func([]string)) ([]json.RawMessage, []string, map[string]any, error) {
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err == nil {
		if doc.Categories != nil {
			names := make([]string, 0, len(doc.Categories))
			for name := range doc.Categories {
				names = append(names, name)
			}
			orderCategories(names)

			if cat, ok := doc.Categories[category]; category != "" && ok {
				return cat.Questions, names, doc.Metadata, nil
			}
			var candidates []json.RawMessage
			for _, name := range names {
				candidates = append(candidates, doc.Categories[name].Questions...)
			}
			return candidates, names, doc.Metadata, nil
		}
		if doc.Questions != nil {
			return doc.Questions, nil, doc.Metadata, nil
		}
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil, nil, nil
	}
	return nil, nil, nil, domain.ErrBadDocument
}

func truncateForLog(raw json.RawMessage) string {
	const max = 120
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}

// RetryPolicy controls caller-driven reloads on transient failures.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

// DefaultRetryPolicy mirrors the retrieval defaults: three attempts with
// exponential backoff from one second, capped at five.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Base: time.Second, Cap: 5 * time.Second}

// LoadWithRetry re-invokes Load with exponential backoff
// (base * 2^(attempt-1), capped) until it succeeds, attempts are exhausted,
// or ctx is canceled. Attempts are strictly serialized.
func LoadWithRetry(ctx context.Context, l *Loader, source string, opts LoadOptions, policy RetryPolicy) (*LoadResult, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := l.Load(ctx, source, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Printf("load attempt %d/%d failed: %v", attempt, attempts, err)

		if attempt == attempts {
			break
		}
		delay := policy.Base << (attempt - 1)
		if policy.Cap > 0 && delay > policy.Cap {
			delay = policy.Cap
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
