// Package chapters derives the chapter navigation list from the question stream.
package chapters

import (
	"context"

	"github.com/conorfennell/chopper/internal/domain"
)

// Observer streams full question snapshots.
type Observer interface {
	ObserveAll(ctx context.Context) <-chan []domain.Question
}

// Distinct returns chapter names in first-seen order without duplicates.
func Distinct(questions []domain.Question) []string {
	seen := make(map[string]struct{}, len(questions))
	out := make([]string, 0)
	for _, q := range questions {
		if _, ok := seen[q.Chapter]; ok {
			continue
		}
		seen[q.Chapter] = struct{}{}
		out = append(out, q.Chapter)
	}
	return out
}

// Watch emits the chapter list every time the question stream does.
// The channel closes when ctx is done.
func Watch(ctx context.Context, src Observer) <-chan []string {
	out := make(chan []string)
	in := src.ObserveAll(ctx)
	go func() {
		defer close(out)
		for qs := range in {
			select {
			case out <- Distinct(qs):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
