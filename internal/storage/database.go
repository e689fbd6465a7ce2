package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
// Every successful write signals the watchers of the table it touched.
type DB struct {
	conn *sql.DB

	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection keeps writes serialised.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{
		conn:     db,
		watchers: make(map[string]map[chan struct{}]struct{}),
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Watch registers interest in writes to table. The returned channel receives a
// value after each write; pending signals coalesce, so a slow reader sees at
// most one queued signal. The stop func unregisters and closes the channel.
func (db *DB) Watch(table string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	db.mu.Lock()
	set, ok := db.watchers[table]
	if !ok {
		set = make(map[chan struct{}]struct{})
		db.watchers[table] = set
	}
	set[ch] = struct{}{}
	db.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			db.mu.Lock()
			delete(db.watchers[table], ch)
			db.mu.Unlock()
			close(ch)
		})
	}
	return ch, stop
}

func (db *DB) notify(table string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for ch := range db.watchers[table] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// QuestionRow is the persisted form of a question.
type QuestionRow struct {
	ID         int64
	Chapter    string
	Section    string
	SubTopic   string
	Content    string
	Answer     string
	IsAnswered bool
	Status     sql.NullInt64
}

const questionColumns = `id, chapter, section, subTopic, content, answer, isAnswered, status`

// UpsertQuestions inserts rows, replacing any existing row with the same id.
// It returns the row ids in input order.
func (db *DB) UpsertQuestions(ctx context.Context, rows []QuestionRow) ([]int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (`+questionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chapter = excluded.chapter,
			section = excluded.section,
			subTopic = excluded.subTopic,
			content = excluded.content,
			answer = excluded.answer,
			isAnswered = excluded.isAnswered,
			status = excluded.status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ID,
			r.Chapter,
			r.Section,
			r.SubTopic,
			r.Content,
			r.Answer,
			r.IsAnswered,
			r.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to upsert question %d: %w", r.ID, err)
		}
		ids = append(ids, r.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upsert: %w", err)
	}
	db.notify(TableQuestions)
	return ids, nil
}

// AllQuestions returns every question ordered by id.
func (db *DB) AllQuestions(ctx context.Context) ([]QuestionRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+questionColumns+`
		FROM questions ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all questions: %w", err)
	}
	return scanQuestions(rows)
}

// QuestionsByChapter returns the questions of one chapter ordered by id.
func (db *DB) QuestionsByChapter(ctx context.Context, chapter string) ([]QuestionRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+questionColumns+`
		FROM questions WHERE chapter = ? ORDER BY id
	`, chapter)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions for chapter %q: %w", chapter, err)
	}
	return scanQuestions(rows)
}

// FindQuestionByID retrieves a question by id. It returns nil, nil when absent.
func (db *DB) FindQuestionByID(ctx context.Context, id int64) (*QuestionRow, error) {
	var r QuestionRow
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+questionColumns+`
		FROM questions WHERE id = ?
	`, id)

	err := row.Scan(
		&r.ID,
		&r.Chapter,
		&r.Section,
		&r.SubTopic,
		&r.Content,
		&r.Answer,
		&r.IsAnswered,
		&r.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find question %d: %w", id, err)
	}
	return &r, nil
}

// CountQuestions returns the number of stored questions.
func (db *DB) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return n, nil
}

// UpdateQuestionStatus sets the answered flag and status of one question.
// Updating an unknown id is a no-op.
func (db *DB) UpdateQuestionStatus(ctx context.Context, id int64, isAnswered bool, status sql.NullInt64) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE questions
		SET isAnswered = ?, status = ?
		WHERE id = ?
	`, isAnswered, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status for question %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		db.notify(TableQuestions)
	}
	return nil
}

func scanQuestions(rows *sql.Rows) ([]QuestionRow, error) {
	defer rows.Close()

	var out []QuestionRow
	for rows.Next() {
		var r QuestionRow
		if err := rows.Scan(
			&r.ID,
			&r.Chapter,
			&r.Section,
			&r.SubTopic,
			&r.Content,
			&r.Answer,
			&r.IsAnswered,
			&r.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question rows: %w", err)
	}
	return out, nil
}
