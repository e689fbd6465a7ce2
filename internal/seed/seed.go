// Package seed loads the initial question set on the first launch.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conorfennell/chopper/internal/importer"
)

// FirstLaunchKey is the preference that stays true until an import succeeds.
const FirstLaunchKey = "first_launch"

// Preferences is the flag storage used to remember a successful import.
type Preferences interface {
	Bool(ctx context.Context, key string, def bool) (bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}

// Importer loads a question set from a source.
type Importer interface {
	ImportFrom(ctx context.Context, src importer.Source) (bool, error)
}

// Run imports src unless a previous run already succeeded.
// The flag is cleared only by a successful import, so a failed or empty
// import is retried on the next start. It reports whether an import ran and succeeded.
// A nil logger uses slog.Default().
func Run(ctx context.Context, prefs Preferences, imp Importer, src importer.Source, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "seed")

	pending, err := prefs.Bool(ctx, FirstLaunchKey, true)
	if err != nil {
		return false, fmt.Errorf("failed to read first launch flag: %w", err)
	}
	if !pending {
		log.Debug("Question set already imported, skipping")
		return false, nil
	}

	log.Info("First launch, importing question set", "source", src.String())
	ok, err := imp.ImportFrom(ctx, src)
	if err != nil {
		log.Error("Question import failed", "source", src.String(), "error", err)
		return false, err
	}

	if err := prefs.SetBool(ctx, FirstLaunchKey, !ok); err != nil {
		return ok, fmt.Errorf("failed to write first launch flag: %w", err)
	}
	if !ok {
		log.Warn("Question set was empty, will retry on next start", "source", src.String())
		return false, nil
	}
	log.Info("Question set imported", "source", src.String())
	return true, nil
}
