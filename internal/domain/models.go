package domain

import "fmt"

// Question is a validated multiple-choice question.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Category      string   `json:"category,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
}

// AnswerRecord captures the outcome of a single answered question.
// SelectedAnswer is nil when the question timed out.
type AnswerRecord struct {
	QuestionID     string  `json:"questionId"`
	SelectedAnswer *int    `json:"selectedAnswer"`
	CorrectAnswer  int     `json:"correctAnswer"`
	IsCorrect      bool    `json:"isCorrect"`
	IsTimeout      bool    `json:"isTimeout"`
	TimeSpentSec   float64 `json:"timeSpent,omitempty"`
}

// GameStats summarizes a finished session.
type GameStats struct {
	Score            int    `json:"score"`
	TotalQuestions   int    `json:"totalQuestions"`
	Percentage       int    `json:"percentage"`
	CorrectAnswers   int    `json:"correctAnswers"`
	IncorrectAnswers int    `json:"incorrectAnswers"`
	Timeouts         int    `json:"timeouts"`
	Grade            string `json:"grade"`
	Performance      string `json:"performance"`
	// TimeSpent is the total answer time formatted as MM:SS. Empty when no
	// per-question time limit was in effect.
	TimeSpent string `json:"timeSpent,omitempty"`
}

// FormatTime renders a second count as MM:SS.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// LeaderboardEntry is a persisted high-score record. Entries are created
// once at save time and never mutated.
type LeaderboardEntry struct {
	ID             int64  `json:"id"`
	PlayerName     string `json:"playerName"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	Percentage     int    `json:"percentage"`
	Date           string `json:"date"`
	Time           string `json:"time"`
}

// Status is the session lifecycle state.
type Status string

const (
	StatusReady    Status = "ready"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// TimeoutAnswer is the sentinel passed to Answer when the per-question
// countdown expires without a selection. It is never a valid option index.
const TimeoutAnswer = -1
