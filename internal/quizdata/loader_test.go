package quizdata

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"quiz-game-service/internal/domain"
)

type staticFetcher map[string][]byte

func (f staticFetcher) Fetch(_ context.Context, source string) ([]byte, error) {
	if payload, ok := f[source]; ok {
		return payload, nil
	}
	return nil, fmt.Errorf("source %q not found", source)
}

func question(id int, text string) string {
	return fmt.Sprintf(`{"id": %d, "text": %q, "options": ["a", "b"], "correctAnswer": 0}`, id, text)
}

func TestLoadFlattensCategories(t *testing.T) {
	doc := fmt.Sprintf(`{"categories": {
		"a": {"questions": [%s, %s]},
		"b": {"questions": [%s]}
	}}`, question(1, "q1"), question(2, "q2"), question(3, "q3"))

	loader := NewLoader(staticFetcher{"quiz.json": []byte(doc)})
	result, err := loader.Load(context.Background(), "quiz.json", LoadOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(result.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(result.Questions))
	}
	// Category order is sorted when shuffle is off.
	if result.Questions[0].Text != "q1" || result.Questions[2].Text != "q3" {
		t.Fatalf("unexpected order: %+v", result.Questions)
	}
	if len(result.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %v", result.Categories)
	}
}

func TestLoadRestrictsToNamedCategory(t *testing.T) {
	doc := fmt.Sprintf(`{"categories": {
		"science": {"questions": [%s]},
		"history": {"questions": [%s, %s]}
	}}`, question(1, "s1"), question(2, "h1"), question(3, "h2"))

	loader := NewLoader(staticFetcher{"quiz.json": []byte(doc)})
	result, err := loader.Load(context.Background(), "quiz.json", LoadOptions{Category: "history"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(result.Questions) != 2 {
		t.Fatalf("expected 2 history questions, got %d", len(result.Questions))
	}

	// Unknown category falls back to flattening everything.
	result, err = loader.Load(context.Background(), "quiz.json", LoadOptions{Category: "geography"})
	if err != nil {
		t.Fatalf("load fallback: %v", err)
	}
	if len(result.Questions) != 3 {
		t.Fatalf("expected full pool on unknown category, got %d", len(result.Questions))
	}
}

func TestLoadAcceptsFlatAndBareArrayFormats(t *testing.T) {
	flat := fmt.Sprintf(`{"questions": [%s], "metadata": {"source": "test"}}`, question(1, "q1"))
	bare := fmt.Sprintf(`[%s, %s]`, question(1, "q1"), question(2, "q2"))

	loader := NewLoader(staticFetcher{"flat.json": []byte(flat), "bare.json": []byte(bare)})

	result, err := loader.Load(context.Background(), "flat.json", LoadOptions{})
	if err != nil {
		t.Fatalf("load flat: %v", err)
	}
	if len(result.Questions) != 1 || result.Metadata["source"] != "test" {
		t.Fatalf("unexpected flat result: %+v", result)
	}

	result, err = loader.Load(context.Background(), "bare.json", LoadOptions{})
	if err != nil {
		t.Fatalf("load bare: %v", err)
	}
	if len(result.Questions) != 2 {
		t.Fatalf("expected 2 questions from bare array, got %d", len(result.Questions))
	}
}

func TestLoadDropsInvalidAndFailsOnEmptyPool(t *testing.T) {
	mixed := fmt.Sprintf(`{"questions": [%s, {"id": 2, "text": " ", "options": ["a", "b"], "correctAnswer": 0}]}`, question(1, "valid"))
	loader := NewLoader(staticFetcher{
		"mixed.json":   []byte(mixed),
		"allbad.json":  []byte(`{"questions": [{"id": 1}, {"text": "no id"}]}`),
		"garbage.json": []byte(`{"metadata": {}}`),
	})

	result, err := loader.Load(context.Background(), "mixed.json", LoadOptions{})
	if err != nil {
		t.Fatalf("load mixed: %v", err)
	}
	if len(result.Questions) != 1 || result.Questions[0].Text != "valid" {
		t.Fatalf("expected only the valid question, got %+v", result.Questions)
	}

	_, err = loader.Load(context.Background(), "allbad.json", LoadOptions{})
	var loadErr *domain.LoadError
	if !errors.As(err, &loadErr) || !errors.Is(err, domain.ErrNoValidQuestions) {
		t.Fatalf("expected LoadError wrapping ErrNoValidQuestions, got %v", err)
	}

	_, err = loader.Load(context.Background(), "garbage.json", LoadOptions{})
	if !errors.Is(err, domain.ErrBadDocument) {
		t.Fatalf("expected structural error, got %v", err)
	}
}

func TestLoadAssignsStableIDs(t *testing.T) {
	doc := `{"questions": [
		{"id": "custom", "text": "q1", "options": ["a", "b"], "correctAnswer": 0},
		{"id": "", "text": "q2", "options": ["a", "b"], "correctAnswer": 1}
	]}`
	loader := NewLoader(staticFetcher{"quiz.json": []byte(doc)})
	result, err := loader.Load(context.Background(), "quiz.json", LoadOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if result.Questions[0].ID != "custom" {
		t.Fatalf("expected source id kept, got %q", result.Questions[0].ID)
	}
	if result.Questions[1].ID != "2" {
		t.Fatalf("expected positional id for blank source id, got %q", result.Questions[1].ID)
	}
}

func TestLoadShuffleAndTruncate(t *testing.T) {
	questions := ""
	for i := 1; i <= 20; i++ {
		if questions != "" {
			questions += ","
		}
		questions += question(i, fmt.Sprintf("q%d", i))
	}
	doc := fmt.Sprintf(`{"questions": [%s]}`, questions)

	loader := NewLoaderWithRand(staticFetcher{"quiz.json": []byte(doc)}, rand.New(rand.NewSource(1)))
	result, err := loader.Load(context.Background(), "quiz.json", LoadOptions{Shuffle: true, MaxQuestions: DefaultMaxQuestions})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(result.Questions) != DefaultMaxQuestions {
		t.Fatalf("expected truncation to %d, got %d", DefaultMaxQuestions, len(result.Questions))
	}
	seen := make(map[string]bool)
	for _, q := range result.Questions {
		if seen[q.ID] {
			t.Fatalf("duplicate question %s after shuffle", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestLoadWithRetryRecovers(t *testing.T) {
	fetcher := &flakyFetcher{failures: 2, payload: []byte(fmt.Sprintf(`{"questions": [%s]}`, question(1, "q1")))}
	loader := NewLoader(fetcher)

	policy := RetryPolicy{Attempts: 3, Base: time.Millisecond, Cap: 5 * time.Millisecond}
	result, err := LoadWithRetry(context.Background(), loader, "quiz.json", LoadOptions{}, policy)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if len(result.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(result.Questions))
	}
	if fetcher.calls != 3 {
		t.Fatalf("expected 3 fetch attempts, got %d", fetcher.calls)
	}
}

func TestLoadWithRetryGivesUp(t *testing.T) {
	fetcher := &flakyFetcher{failures: 10}
	loader := NewLoader(fetcher)

	policy := RetryPolicy{Attempts: 2, Base: time.Millisecond, Cap: 5 * time.Millisecond}
	_, err := LoadWithRetry(context.Background(), loader, "quiz.json", LoadOptions{}, policy)
	var loadErr *domain.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError after exhausted retries, got %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", fetcher.calls)
	}
}

type flakyFetcher struct {
	failures int
	calls    int
	payload  []byte
}

func (f *flakyFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient network error")
	}
	return f.payload, nil
}
