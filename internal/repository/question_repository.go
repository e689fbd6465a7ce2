package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/conorfennell/chopper/internal/domain"
	"github.com/conorfennell/chopper/internal/storage"
)

// Repository exposes the question store in domain terms.
type Repository struct {
	db  *storage.DB
	log *slog.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	errs   chan error

	qmu      sync.Mutex
	queue    []statusUpdate
	draining bool
}

type statusUpdate struct {
	id         int
	isAnswered bool
	status     domain.Status
}

// New creates a repository over db. A nil logger uses slog.Default().
func New(db *storage.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Repository{
		db:     db,
		log:    logger.With("component", "repository"),
		base:   base,
		cancel: cancel,
		errs:   make(chan error, 16),
	}
}

// Close cancels in-flight background writes and waits for them to return.
func (r *Repository) Close() {
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until every background write started so far has finished.
func (r *Repository) Wait() {
	r.wg.Wait()
}

// Errors delivers failures of background writes. Errors are dropped when the
// buffer is full.
func (r *Repository) Errors() <-chan error {
	return r.errs
}

// InsertQuestions upserts questions by id and returns their row ids.
func (r *Repository) InsertQuestions(ctx context.Context, questions []domain.Question) ([]int64, error) {
	rows := make([]storage.QuestionRow, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, toRow(q))
	}
	return r.db.UpsertQuestions(ctx, rows)
}

// Snapshot returns the whole table once.
func (r *Repository) Snapshot(ctx context.Context) ([]domain.Question, error) {
	rows, err := r.db.AllQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return toQuestions(rows), nil
}

// ByChapter returns one chapter's questions once.
func (r *Repository) ByChapter(ctx context.Context, chapter string) ([]domain.Question, error) {
	rows, err := r.db.QuestionsByChapter(ctx, chapter)
	if err != nil {
		return nil, err
	}
	return toQuestions(rows), nil
}

// Find returns the question with id, or nil when there is none.
func (r *Repository) Find(ctx context.Context, id int) (*domain.Question, error) {
	row, err := r.db.FindQuestionByID(ctx, int64(id))
	if err != nil || row == nil {
		return nil, err
	}
	q := toQuestion(*row)
	return &q, nil
}

// Count returns the number of stored questions.
func (r *Repository) Count(ctx context.Context) (int, error) {
	return r.db.CountQuestions(ctx)
}

// UpdateStatus records a status choice for one question.
func (r *Repository) UpdateStatus(ctx context.Context, id int, isAnswered bool, status *domain.Status) error {
	code := sql.NullInt64{}
	if status != nil {
		code = sql.NullInt64{Int64: int64(*status), Valid: true}
	}
	return r.db.UpdateQuestionStatus(ctx, int64(id), isAnswered, code)
}

// UpdateStatusAsync records a status choice without waiting for the result.
// Queued updates are applied one at a time in call order, so the latest
// choice for a question wins. Failures are logged and published on Errors.
func (r *Repository) UpdateStatusAsync(id int, isAnswered bool, status domain.Status) {
	r.wg.Add(1)
	r.qmu.Lock()
	defer r.qmu.Unlock()
	r.queue = append(r.queue, statusUpdate{id: id, isAnswered: isAnswered, status: status})
	if !r.draining {
		r.draining = true
		go r.drain()
	}
}

func (r *Repository) drain() {
	for {
		r.qmu.Lock()
		if len(r.queue) == 0 {
			r.draining = false
			r.qmu.Unlock()
			return
		}
		u := r.queue[0]
		r.queue = r.queue[1:]
		r.qmu.Unlock()

		r.apply(u)
		r.wg.Done()
	}
}

func (r *Repository) apply(u statusUpdate) {
	if err := r.UpdateStatus(r.base, u.id, u.isAnswered, &u.status); err != nil {
		r.log.Error("Background status update failed", "question_id", u.id, "status", u.status, "error", err)
		select {
		case r.errs <- fmt.Errorf("update status of question %d: %w", u.id, err):
		default:
		}
	}
}

// ObserveAll streams full snapshots of the table, re-emitting after every write.
// The channel is closed once ctx is done.
func (r *Repository) ObserveAll(ctx context.Context) <-chan []domain.Question {
	return r.observe(ctx, "all", r.db.AllQuestions)
}

// ObserveByChapter streams snapshots of one chapter's questions.
func (r *Repository) ObserveByChapter(ctx context.Context, chapter string) <-chan []domain.Question {
	return r.observe(ctx, chapter, func(ctx context.Context) ([]storage.QuestionRow, error) {
		return r.db.QuestionsByChapter(ctx, chapter)
	})
}

func (r *Repository) observe(ctx context.Context, name string, query func(context.Context) ([]storage.QuestionRow, error)) <-chan []domain.Question {
	out := make(chan []domain.Question)
	// Subscribe before the first query so a write racing it is not missed.
	changes, stop := r.db.Watch(storage.TableQuestions)

	go func() {
		defer close(out)
		defer stop()

		for {
			rows, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.Error("Failed to load question snapshot", "stream", name, "error", err)
			} else {
				select {
				case out <- toQuestions(rows):
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-changes:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func toRow(q domain.Question) storage.QuestionRow {
	row := storage.QuestionRow{
		ID:         int64(q.ID),
		Chapter:    q.Chapter,
		Section:    q.Section,
		SubTopic:   q.SubTopic,
		Content:    q.Content,
		Answer:     q.Answer,
		IsAnswered: q.IsAnswered,
	}
	if q.Status != nil {
		row.Status = sql.NullInt64{Int64: int64(*q.Status), Valid: true}
	}
	return row
}

func toQuestion(row storage.QuestionRow) domain.Question {
	q := domain.Question{
		ID:         int(row.ID),
		Chapter:    row.Chapter,
		Section:    row.Section,
		SubTopic:   row.SubTopic,
		Content:    row.Content,
		Answer:     row.Answer,
		IsAnswered: row.IsAnswered,
	}
	if row.Status.Valid {
		q.Status = domain.StatusPtr(domain.StatusFromCode(int(row.Status.Int64)))
	}
	return q
}

func toQuestions(rows []storage.QuestionRow) []domain.Question {
	out := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, toQuestion(row))
	}
	return out
}
