package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when Start is called outside the ready state.
	ErrNotReady = errors.New("game already started")
	// ErrNotPlaying is returned when Answer is called outside the playing state.
	ErrNotPlaying = errors.New("game is not in progress")
	// ErrNoQuestions is returned when Start is called with an empty question list.
	ErrNoQuestions = errors.New("no questions loaded")
	// ErrAdvancePending is returned when Answer is called again before the
	// feedback window for the previous answer has elapsed.
	ErrAdvancePending = errors.New("answer already recorded for current question")
	// ErrGameNotFinished is returned when a high score is submitted mid-game.
	ErrGameNotFinished = errors.New("game is not finished")
	// ErrScoreAlreadySaved is returned when a finished game tries to submit
	// its score to the leaderboard twice.
	ErrScoreAlreadySaved = errors.New("score already saved for this game")
	// ErrGameNotFound is returned when a command references an unknown game.
	ErrGameNotFound = errors.New("game not found")

	// ErrNoValidQuestions indicates every candidate in a source failed validation.
	ErrNoValidQuestions = errors.New("no valid questions found in the dataset")
	// ErrBadDocument indicates a source payload with no recognizable question structure.
	ErrBadDocument = errors.New("invalid data structure: no questions found")
)

// LoadError wraps a retrieval or structural failure while loading questions.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load questions from %q: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// StorageError wraps a failure of the durable leaderboard storage. Callers
// are expected to degrade gracefully rather than abort the game.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("leaderboard storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
