// Package importer bulk-loads question sets from JSON documents into the store.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/chopper/internal/domain"
)

// Inserter is the part of the repository the importer writes to.
type Inserter interface {
	InsertQuestions(ctx context.Context, questions []domain.Question) ([]int64, error)
}

// Record is one entry of an import document.
// A legacy boolean "isCorrect" field is ignored. Unknown status codes read as
// Forgot.
type Record struct {
	ID         *int   `json:"id" validate:"required"`
	Chapter    string `json:"chapter" validate:"required"`
	Section    string `json:"section" validate:"required"`
	SubTopic   string `json:"subTopic" validate:"required"`
	Content    string `json:"content" validate:"required"`
	Answer     string `json:"answer" validate:"required"`
	IsAnswered bool   `json:"isAnswered"`
	Status     *int   `json:"status"`
}

// Importer converts import documents into questions and upserts them.
type Importer struct {
	repo     Inserter
	validate *validator.Validate
	log      *slog.Logger
}

// New creates an importer writing to repo. A nil logger uses slog.Default().
func New(repo Inserter, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.With("component", "importer"),
	}
}

// Import reads a JSON array of records from r and upserts the valid ones.
//
// It reports false without an error when the document is blank, is JSON null,
// or holds no convertible records. Malformed JSON is returned as an error
// wrapping the decoder's *json.SyntaxError or *json.UnmarshalTypeError.
func (i *Importer) Import(ctx context.Context, r io.Reader) (bool, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return false, fmt.Errorf("failed to read import document: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		i.log.Warn("Import document is blank")
		return false, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return false, fmt.Errorf("failed to parse import document: %w", err)
	}
	if raw == nil {
		i.log.Warn("Import document is null")
		return false, nil
	}
	if len(raw) == 0 {
		i.log.Warn("Import document holds no questions")
	}

	questions := make([]domain.Question, 0, len(raw))
	for idx, msg := range raw {
		q, err := i.convert(msg)
		if err != nil {
			i.log.Debug("Skipping record", "index", idx, "error", err)
			continue
		}
		i.log.Debug("Parsed question", "id", q.ID, "content", preview(q.Content))
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return false, nil
	}

	ids, err := i.repo.InsertQuestions(ctx, questions)
	if err != nil {
		return false, fmt.Errorf("failed to store imported questions: %w", err)
	}
	i.log.Info("Import complete",
		"records", len(raw),
		"inserted", len(ids),
		"skipped", len(raw)-len(questions),
	)
	return true, nil
}

func (i *Importer) convert(msg json.RawMessage) (domain.Question, error) {
	var rec Record
	if err := json.Unmarshal(msg, &rec); err != nil {
		return domain.Question{}, err
	}
	if err := i.validate.Struct(rec); err != nil {
		return domain.Question{}, err
	}

	q := domain.Question{
		ID:         *rec.ID,
		Chapter:    rec.Chapter,
		Section:    rec.Section,
		SubTopic:   rec.SubTopic,
		Content:    rec.Content,
		Answer:     rec.Answer,
		IsAnswered: rec.IsAnswered,
	}
	if rec.Status != nil {
		q.Status = domain.StatusPtr(domain.StatusFromCode(*rec.Status))
	}
	return q, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 20 {
		return s
	}
	return string(r[:20]) + "..."
}
