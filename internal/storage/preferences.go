package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Preference returns the stored value for key and whether it was present.
func (db *DB) Preference(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return v, true, nil
}

// SetPreference stores value under key, replacing any previous value.
func (db *DB) SetPreference(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	db.notify(TablePreferences)
	return nil
}

// Bool reads a boolean preference, returning def when it is unset or unparsable.
func (db *DB) Bool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := db.Preference(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, nil
	}
	return b, nil
}

// SetBool stores a boolean preference.
func (db *DB) SetBool(ctx context.Context, key string, value bool) error {
	return db.SetPreference(ctx, key, strconv.FormatBool(value))
}
