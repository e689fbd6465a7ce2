// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/conorfennell/chopper/internal/domain"
	"github.com/conorfennell/chopper/internal/repository"
	"github.com/conorfennell/chopper/internal/storage"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OpenDB opens a fresh database in a temp dir and closes it on cleanup.
func OpenDB(tb testing.TB) *storage.DB {
	tb.Helper()
	db, err := storage.Open(filepath.Join(tb.TempDir(), "chopper.db"))
	if err != nil {
		tb.Fatalf("open db: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}

// NewRepository returns a repository over a fresh database seeded with questions.
func NewRepository(tb testing.TB, questions ...domain.Question) (*repository.Repository, *storage.DB) {
	tb.Helper()
	db := OpenDB(tb)
	repo := repository.New(db, Logger())
	tb.Cleanup(repo.Close)
	if len(questions) > 0 {
		if _, err := repo.InsertQuestions(context.Background(), questions); err != nil {
			tb.Fatalf("seed questions: %v", err)
		}
	}
	return repo, db
}

// Question builds a valid question with predictable text.
func Question(id int, chapter string) domain.Question {
	return domain.Question{
		ID:       id,
		Chapter:  chapter,
		Section:  "section",
		SubTopic: "topic",
		Content:  fmt.Sprintf("question %d", id),
		Answer:   fmt.Sprintf("answer %d", id),
	}
}

// Questions builds n questions in one chapter with ids starting at first.
func Questions(first, n int, chapter string) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Question(first+i, chapter))
	}
	return out
}

// WithStatus returns q with its status set.
func WithStatus(q domain.Question, s domain.Status) domain.Question {
	q.Status = domain.StatusPtr(s)
	q.IsAnswered = true
	return q
}
