package quizdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"quiz-game-service/internal/domain"
)

// candidate is the loosely-typed shape of a question before validation.
// Pointer and any-typed fields distinguish "absent or null" from zero values.
type candidate struct {
	ID            any      `json:"id"`
	Text          *string  `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer any      `json:"correctAnswer"`
	Category      string   `json:"category"`
	Difficulty    string   `json:"difficulty"`
}

func parseCandidate(raw json.RawMessage) (candidate, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var c candidate
	if err := dec.Decode(&c); err != nil {
		return candidate{}, false
	}
	return c, true
}

// Validate reports whether a raw candidate is a well-formed question: a JSON
// object carrying id, text, options and correctAnswer, with at least two
// non-blank options and an integer correctAnswer indexing into them.
// Unknown extra fields are allowed.
func Validate(raw json.RawMessage) bool {
	c, ok := parseCandidate(raw)
	if !ok {
		return false
	}
	return validateCandidate(c)
}

func validateCandidate(c candidate) bool {
	if c.ID == nil || c.Text == nil || c.Options == nil || c.CorrectAnswer == nil {
		return false
	}
	if len(c.Options) < 2 {
		return false
	}
	idx, ok := answerIndex(c.CorrectAnswer)
	if !ok || idx < 0 || idx >= len(c.Options) {
		return false
	}
	if strings.TrimSpace(*c.Text) == "" {
		return false
	}
	for _, opt := range c.Options {
		if strings.TrimSpace(opt) == "" {
			return false
		}
	}
	return true
}

// answerIndex coerces correctAnswer to an int, rejecting non-numeric and
// fractional values.
func answerIndex(v any) (int, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	n, err := num.Int64()
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// questionID keeps the source id when present, falling back to the 1-based
// position so ids stay unique within a loaded batch.
func questionID(id any, position int) string {
	switch v := id.(type) {
	case string:
		if v != "" {
			return v
		}
	case json.Number:
		return v.String()
	case nil:
	default:
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("%d", position)
}

// buildQuestion converts a validated candidate into a domain question.
func buildQuestion(c candidate, position int) domain.Question {
	return domain.Question{
		ID:            questionID(c.ID, position),
		Text:          *c.Text,
		Options:       c.Options,
		CorrectAnswer: mustAnswerIndex(c.CorrectAnswer),
		Category:      c.Category,
		Difficulty:    c.Difficulty,
	}
}

func mustAnswerIndex(v any) int {
	idx, _ := answerIndex(v)
	return idx
}
