package app

import (
	"math"
	"sync"
	"time"

	"quiz-game-service/internal/domain"
)

// SessionOptions tune a single play-through.
type SessionOptions struct {
	// QuestionTime is the per-question countdown; zero disables it.
	QuestionTime time.Duration
	// FeedbackDelay holds the revealed answer before advancing to the next
	// question; zero advances immediately.
	FeedbackDelay time.Duration
}

// DefaultFeedbackDelay is how long the revealed answer stays on screen.
const DefaultFeedbackDelay = 1500 * time.Millisecond

// QuestionView is the question as shown to the player, without the answer key.
type QuestionView struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// Snapshot is an immutable view of session state, broadcast to subscribers
// after every transition.
type Snapshot struct {
	GameID         string            `json:"gameId"`
	Status         domain.Status     `json:"status"`
	QuestionIndex  int               `json:"questionIndex"`
	TotalQuestions int               `json:"totalQuestions"`
	Score          int               `json:"score"`
	Question       *QuestionView     `json:"question,omitempty"`
	TimeLeftSec    int               `json:"timeLeft,omitempty"`
	Stats          *domain.GameStats `json:"stats,omitempty"`
}

// Session is the quiz game state machine: ready -> playing -> finished, with
// Restart returning to ready from any state. All mutation happens through
// transition methods under the session mutex; timers re-enter through the
// same guarded paths.
type Session struct {
	id   string
	opts SessionOptions
	now  func() time.Time

	mu              sync.RWMutex
	status          domain.Status
	questions       []domain.Question
	current         int
	score           int
	answers         []domain.AnswerRecord
	stats           *domain.GameStats
	questionStarted time.Time
	advancePending  bool
	advanceTimer    *time.Timer
	questionTimer   *time.Timer
	scoreSaved      bool
	subscribers     map[chan Snapshot]struct{}
}

// NewSession is exported for infrastructure layers that need to seed games.
func NewSession(id string, opts SessionOptions) *Session {
	return newSessionWithClock(id, opts, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id string, opts SessionOptions, now func() time.Time) *Session {
	return newSessionWithClock(id, opts, now)
}

func newSessionWithClock(id string, opts SessionOptions, now func() time.Time) *Session {
	return &Session{
		id:          id,
		opts:        opts,
		now:         now,
		status:      domain.StatusReady,
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle state.
func (s *Session) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Start begins play over an already-loaded question sequence. Valid only
// from the ready state with at least one question.
func (s *Session) Start(questions []domain.Question) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusReady {
		return s.snapshotLocked(), domain.ErrNotReady
	}
	if len(questions) == 0 {
		return s.snapshotLocked(), domain.ErrNoQuestions
	}

	// The question list is fixed for the session's duration.
	s.questions = append([]domain.Question(nil), questions...)
	s.current = 0
	s.score = 0
	s.answers = nil
	s.stats = nil
	s.scoreSaved = false
	s.status = domain.StatusPlaying
	s.questionStarted = s.now()
	s.armQuestionTimerLocked()

	return s.broadcastLocked(), nil
}

// Answer records the player's selection for the current question,
// domain.TimeoutAnswer standing in for "time ran out". Exactly one answer is
// accepted per question; a second call during the feedback window returns
// ErrAdvancePending.
func (s *Session) Answer(selected int) (domain.AnswerRecord, Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answerLocked(selected)
}

func (s *Session) answerLocked(selected int) (domain.AnswerRecord, Snapshot, error) {
	if s.status != domain.StatusPlaying {
		return domain.AnswerRecord{}, s.snapshotLocked(), domain.ErrNotPlaying
	}
	if s.advancePending {
		return domain.AnswerRecord{}, s.snapshotLocked(), domain.ErrAdvancePending
	}

	if s.questionTimer != nil {
		s.questionTimer.Stop()
		s.questionTimer = nil
	}

	q := s.questions[s.current]
	isTimeout := selected == domain.TimeoutAnswer
	isCorrect := !isTimeout && selected == q.CorrectAnswer

	record := domain.AnswerRecord{
		QuestionID:    q.ID,
		CorrectAnswer: q.CorrectAnswer,
		IsCorrect:     isCorrect,
		IsTimeout:     isTimeout,
	}
	if !isTimeout {
		record.SelectedAnswer = &selected
	}
	if s.opts.QuestionTime > 0 {
		record.TimeSpentSec = s.now().Sub(s.questionStarted).Seconds()
	}

	s.answers = append(s.answers, record)
	if isCorrect {
		s.score++
	}

	if s.opts.FeedbackDelay > 0 {
		s.advancePending = true
		s.advanceTimer = time.AfterFunc(s.opts.FeedbackDelay, s.advanceAfterFeedback)
	} else {
		s.advanceLocked()
	}
	return record, s.broadcastLocked(), nil
}

// advanceAfterFeedback is the scheduled one-shot advance at the end of the
// feedback window. A restart supersedes it.
func (s *Session) advanceAfterFeedback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.advancePending {
		return
	}
	s.advancePending = false
	s.advanceTimer = nil
	s.advanceLocked()
	s.broadcastLocked()
}

func (s *Session) advanceLocked() {
	if s.current+1 < len(s.questions) {
		s.current++
		s.questionStarted = s.now()
		s.armQuestionTimerLocked()
		return
	}
	s.current = len(s.questions)
	s.status = domain.StatusFinished
	s.stats = s.computeStatsLocked()
}

// armQuestionTimerLocked schedules the timeout answer for the question at
// the current index. The closure re-checks the index so a stale timer never
// times out a later question.
func (s *Session) armQuestionTimerLocked() {
	if s.opts.QuestionTime <= 0 {
		return
	}
	index := s.current
	s.questionTimer = time.AfterFunc(s.opts.QuestionTime, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.status != domain.StatusPlaying || s.current != index || s.advancePending {
			return
		}
		_, _, _ = s.answerLocked(domain.TimeoutAnswer)
	})
}

// Restart discards all session state and returns to ready. Valid from any
// state; pending timers are superseded.
func (s *Session) Restart() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
	if s.questionTimer != nil {
		s.questionTimer.Stop()
		s.questionTimer = nil
	}
	s.advancePending = false
	s.questions = nil
	s.current = 0
	s.score = 0
	s.answers = nil
	s.stats = nil
	s.scoreSaved = false
	s.status = domain.StatusReady

	return s.broadcastLocked()
}

// Stats returns the terminal statistics of a finished game.
func (s *Session) Stats() (domain.GameStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != domain.StatusFinished || s.stats == nil {
		return domain.GameStats{}, domain.ErrGameNotFinished
	}
	return *s.stats, nil
}

// Answers returns the answer history in question order.
func (s *Session) Answers() []domain.AnswerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AnswerRecord(nil), s.answers...)
}

// markScoreSaved flags the finished game as having submitted (or declined)
// its high score, so it is recorded at most once.
func (s *Session) markScoreSaved() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusFinished {
		return domain.ErrGameNotFinished
	}
	if s.scoreSaved {
		return domain.ErrScoreAlreadySaved
	}
	s.scoreSaved = true
	return nil
}

// unmarkScoreSaved re-opens the save prompt after a failed submission.
func (s *Session) unmarkScoreSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoreSaved = false
}

func (s *Session) computeStatsLocked() *domain.GameStats {
	total := len(s.questions)
	percentage := int(math.Round(float64(s.score) / float64(total) * 100))
	timeouts := 0
	totalTime := 0.0
	for _, a := range s.answers {
		if a.IsTimeout {
			timeouts++
		}
		totalTime += a.TimeSpentSec
	}
	grade, performance := gradeFor(percentage)
	stats := &domain.GameStats{
		Score:            s.score,
		TotalQuestions:   total,
		Percentage:       percentage,
		CorrectAnswers:   s.score,
		IncorrectAnswers: total - s.score,
		Timeouts:         timeouts,
		Grade:            grade,
		Performance:      performance,
	}
	if s.opts.QuestionTime > 0 {
		stats.TimeSpent = domain.FormatTime(int(math.Round(totalTime)))
	}
	return stats
}

func gradeFor(percentage int) (string, string) {
	switch {
	case percentage >= 90:
		return "A+", "Excellent"
	case percentage >= 80:
		return "A", "Very Good"
	case percentage >= 70:
		return "B", "Good"
	case percentage >= 60:
		return "C", "Fair"
	case percentage >= 50:
		return "D", "Below Average"
	default:
		return "F", "Needs Improvement"
	}
}

// Subscribe returns a channel receiving a snapshot after every transition,
// primed with the current state. The caller must invoke the returned cancel
// function to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the current state view.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) broadcastLocked() Snapshot {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale update so a slow subscriber never blocks a transition.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		GameID:         s.id,
		Status:         s.status,
		QuestionIndex:  s.current,
		TotalQuestions: len(s.questions),
		Score:          s.score,
		Stats:          s.stats,
	}
	if s.status == domain.StatusPlaying && s.current < len(s.questions) {
		q := s.questions[s.current]
		snap.Question = &QuestionView{
			ID:         q.ID,
			Text:       q.Text,
			Options:    q.Options,
			Category:   q.Category,
			Difficulty: q.Difficulty,
		}
		if s.opts.QuestionTime > 0 {
			left := s.opts.QuestionTime - s.now().Sub(s.questionStarted)
			if left < 0 {
				left = 0
			}
			snap.TimeLeftSec = int(math.Ceil(left.Seconds()))
		}
	}
	return snap
}
