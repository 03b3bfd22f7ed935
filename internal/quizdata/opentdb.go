package quizdata

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math/rand"
	"strings"
	"time"
)

// OpenTriviaFetcher wraps another fetcher and rewrites Open Trivia Database
// payloads into the native question document format, so the rest of the
// pipeline never sees the foreign shape.
type OpenTriviaFetcher struct {
	next Fetcher
	rnd  *rand.Rand
}

func NewOpenTriviaFetcher(next Fetcher) *OpenTriviaFetcher {
	return &OpenTriviaFetcher{
		next: next,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type openTriviaResponse struct {
	ResponseCode int              `json:"response_code"`
	Results      []openTriviaItem `json:"results"`
}

type openTriviaItem struct {
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

func (f *OpenTriviaFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	raw, err := f.next.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	return f.transform(raw)
}

// transform decodes HTML entities, shuffles the correct answer in among the
// incorrect ones, and records the resulting correctAnswer index.
func (f *OpenTriviaFetcher) transform(raw []byte) ([]byte, error) {
	var resp openTriviaResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode trivia response: %w", err)
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("invalid trivia response: missing results")
	}

	type nativeQuestion struct {
		ID            int      `json:"id"`
		Text          string   `json:"text"`
		Options       []string `json:"options"`
		CorrectAnswer int      `json:"correctAnswer"`
		Category      string   `json:"category,omitempty"`
		Difficulty    string   `json:"difficulty,omitempty"`
	}

	questions := make([]nativeQuestion, 0, len(resp.Results))
	for i, item := range resp.Results {
		correct := html.UnescapeString(item.CorrectAnswer)
		options := make([]string, 0, len(item.IncorrectAnswers)+1)
		for _, opt := range item.IncorrectAnswers {
			options = append(options, html.UnescapeString(opt))
		}
		options = append(options, correct)
		f.rnd.Shuffle(len(options), func(a, b int) {
			options[a], options[b] = options[b], options[a]
		})

		correctIdx := 0
		for idx, opt := range options {
			if opt == correct {
				correctIdx = idx
				break
			}
		}

		questions = append(questions, nativeQuestion{
			ID:            i + 1,
			Text:          html.UnescapeString(item.Question),
			Options:       options,
			CorrectAnswer: correctIdx,
			Category:      categorySlug(item.Category),
			Difficulty:    item.Difficulty,
		})
	}

	doc := map[string]any{
		"questions": questions,
		"metadata": map[string]any{
			"source":         "Open Trivia Database",
			"totalQuestions": len(questions),
			"responseCode":   resp.ResponseCode,
		},
	}
	return json.Marshal(doc)
}

func categorySlug(category string) string {
	return strings.ReplaceAll(strings.ToLower(category), " ", "_")
}
