// Package review runs bounded review sessions over the question store.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/conorfennell/chopper/internal/domain"
)

// CompletionQuota is the number of correct answers that ends a session.
const CompletionQuota = 20

var (
	// ErrNothingToReview means the store holds no questions at all.
	ErrNothingToReview = errors.New("nothing to review")
	// ErrAtFirst and ErrAtLast report a move past either end of the working set.
	ErrAtFirst = errors.New("already at the first question")
	ErrAtLast  = errors.New("already at the last question")
	// ErrSessionOver rejects commands after completion or abandonment.
	ErrSessionOver = errors.New("review session is over")
	// ErrAlreadyAnswered rejects a second status choice on the same visit.
	ErrAlreadyAnswered = errors.New("status already chosen for this question")
)

// Phase is the lifecycle state of a session.
type Phase int

const (
	NotStarted Phase = iota
	InProgress
	Completed
	Abandoned
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	case Abandoned:
		return "abandoned"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Direction is a cursor move.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Store is what a session needs from the repository.
type Store interface {
	Snapshot(ctx context.Context) ([]domain.Question, error)
	UpdateStatusAsync(id int, isAnswered bool, status domain.Status)
}

// Session walks a snapshot of non-mastered questions.
// The snapshot is taken once; later store writes are not reflected.
type Session struct {
	ID uuid.UUID

	store Store
	log   *slog.Logger

	mu        sync.Mutex
	questions []domain.Question
	position  int
	correct   int
	answered  bool
	shown     bool
	chosen    map[int]domain.Status
	phase     Phase
}

// View is a point-in-time view of a session for presentation.
type View struct {
	ID          string          `json:"id"`
	Phase       Phase           `json:"phase"`
	Position    int             `json:"position"`
	Total       int             `json:"total"`
	Correct     int             `json:"correct"`
	Quota       int             `json:"quota"`
	Current     domain.Question `json:"current"`
	Status      *domain.Status  `json:"status,omitempty"`
	Answered    bool            `json:"answered"`
	AnswerShown bool            `json:"answerShown"`
}

// Outcome is the result of a status choice.
type Outcome struct {
	Correct   int  `json:"correct"`
	Completed bool `json:"completed"`
}

// Start snapshots the store and opens a session over the questions that are
// not yet mastered, or over every question when all are mastered.
func Start(ctx context.Context, store Store, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	all, err := store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load review questions: %w", err)
	}

	working := make([]domain.Question, 0, len(all))
	for _, q := range all {
		if q.CurrentStatus() != domain.Mastered {
			working = append(working, q)
		}
	}
	if len(working) == 0 {
		working = all
	}
	if len(working) == 0 {
		return nil, ErrNothingToReview
	}

	id := uuid.New()
	s := &Session{
		ID:        id,
		store:     store,
		log:       logger.With("component", "review", "session_id", id.String()),
		questions: working,
		chosen:    make(map[int]domain.Status),
		phase:     InProgress,
	}
	s.log.Info("Review session started", "loaded", len(all), "working_set", len(working))
	return s, nil
}

// SelectStatus records status for the current question, reveals its answer
// and counts it towards the quota when it is Known or Mastered.
// Only one choice is accepted per visit; MarkForgot can still override it.
// The store write is not awaited.
func (s *Session) SelectStatus(status domain.Status) (Outcome, error) {
	if !status.Valid() {
		return Outcome{}, fmt.Errorf("invalid status %d", int(status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != InProgress {
		return Outcome{Correct: s.correct, Completed: s.phase == Completed}, ErrSessionOver
	}
	if s.answered {
		return Outcome{Correct: s.correct}, ErrAlreadyAnswered
	}

	q := s.questions[s.position]
	s.log.Debug("Selecting status", "question_id", q.ID, "status", status, "position", s.position)
	s.store.UpdateStatusAsync(q.ID, true, status)

	s.answered = true
	s.shown = true
	s.chosen[q.ID] = status

	if status.Correct() {
		s.correct++
		if s.correct >= CompletionQuota {
			s.phase = Completed
			s.log.Info("Review session completed", "correct", s.correct)
		}
	}
	return Outcome{Correct: s.correct, Completed: s.phase == Completed}, nil
}

// Advance moves one question in dir. Moving past either end leaves the cursor
// in place and returns ErrAtFirst or ErrAtLast.
func (s *Session) Advance(dir Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != InProgress {
		return ErrSessionOver
	}

	next := s.position + int(dir)
	switch {
	case next < 0:
		return ErrAtFirst
	case next >= len(s.questions):
		return ErrAtLast
	}
	s.position = next
	s.answered = false
	s.shown = false
	return nil
}

// MarkForgot overrides the status chosen on this visit with Forgot. It does
// nothing unless a status was already chosen since arriving at the question,
// and reports whether it applied.
func (s *Session) MarkForgot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != InProgress || !s.answered {
		return false
	}

	q := s.questions[s.position]
	s.log.Debug("Marking question as forgotten", "question_id", q.ID)
	s.store.UpdateStatusAsync(q.ID, true, domain.Forgot)
	s.chosen[q.ID] = domain.Forgot
	s.shown = true
	return true
}

// Abandon ends the session early.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == InProgress {
		s.phase = Abandoned
		s.log.Info("Review session abandoned", "correct", s.correct)
	}
}

// Phase returns the lifecycle state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.questions[s.position]
	v := View{
		ID:          s.ID.String(),
		Phase:       s.phase,
		Position:    s.position,
		Total:       len(s.questions),
		Correct:     s.correct,
		Quota:       CompletionQuota,
		Current:     q,
		Answered:    s.answered,
		AnswerShown: s.shown,
	}
	if st, ok := s.chosen[q.ID]; ok {
		v.Status = domain.StatusPtr(st)
	} else if q.Status != nil {
		v.Status = domain.StatusPtr(*q.Status)
	}
	return v
}
