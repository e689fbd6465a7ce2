// Package browse holds the state of the chapter question browser.
package browse

import (
	"context"
	"log/slog"
	"sync"

	"github.com/conorfennell/chopper/internal/domain"
)

// Observer streams the live question list of one chapter.
type Observer interface {
	ObserveByChapter(ctx context.Context, chapter string) <-chan []domain.Question
}

// State is a point-in-time view of the browser.
type State struct {
	Chapter     string            `json:"chapter"`
	Questions   []domain.Question `json:"questions"`
	Index       int               `json:"index"`
	AnswerShown bool              `json:"answerShown"`
	Current     *domain.Question  `json:"current"`
}

// Browser walks the questions of the selected chapter.
//
// Selecting a chapter switches to that chapter's live stream and drops the
// previous one; emissions from a superseded stream are never applied. The
// cursor survives chapter switches and is clamped to the current list on read.
type Browser struct {
	parent context.Context
	src    Observer
	log    *slog.Logger

	mu        sync.Mutex
	chapter   string
	questions []domain.Question
	index     int
	shown     bool
	gen       uint64
	cancel    context.CancelFunc
	subs      map[chan State]struct{}
	closed    bool
	done      chan struct{}
}

// New creates a browser with no chapter selected. Streams stop when ctx is done.
func New(ctx context.Context, src Observer, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{
		parent: ctx,
		src:    src,
		log:    logger.With("component", "browser"),
		cancel: func() {},
		subs:   make(map[chan State]struct{}),
		done:   make(chan struct{}),
	}
}

// SelectChapter makes name the active chapter.
func (b *Browser) SelectChapter(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.cancel()
	b.gen++
	gen := b.gen
	ctx, cancel := context.WithCancel(b.parent)
	b.cancel = cancel
	b.chapter = name
	b.questions = nil
	b.publishLocked()

	stream := b.src.ObserveByChapter(ctx, name)
	go b.follow(gen, stream)
}

func (b *Browser) follow(gen uint64, stream <-chan []domain.Question) {
	for qs := range stream {
		b.mu.Lock()
		if b.gen != gen || b.closed {
			b.mu.Unlock()
			return
		}
		b.questions = qs
		b.publishLocked()
		b.mu.Unlock()
	}
}

// Next moves the cursor forward, stopping at the last question.
func (b *Browser) Next() {
	b.mu.Lock()
	defer b.mu.Unlock()
	from := b.clampedLocked()
	to := min(from+1, len(b.questions)-1)
	if to < 0 {
		to = 0
	}
	b.log.Debug("Next", "from", from, "to", to)
	b.index = to
	b.publishLocked()
}

// Prev moves the cursor back, stopping at the first question.
func (b *Browser) Prev() {
	b.mu.Lock()
	defer b.mu.Unlock()
	from := b.clampedLocked()
	to := max(from-1, 0)
	b.log.Debug("Prev", "from", from, "to", to)
	b.index = to
	b.publishLocked()
}

// ToggleAnswer flips answer visibility.
func (b *Browser) ToggleAnswer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shown = !b.shown
	b.publishLocked()
}

// ResetAnswerVisibility hides the answer.
func (b *Browser) ResetAnswerVisibility() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shown = false
	b.publishLocked()
}

// Current returns the question under the cursor, or false when the list is empty.
func (b *Browser) Current() (domain.Question, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stateLocked()
	if s.Current == nil {
		return domain.Question{}, false
	}
	return *s.Current, true
}

// State returns a snapshot of the browser.
func (b *Browser) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Subscribe delivers the current state and every later change. Only the most
// recent undelivered state is kept. The channel closes when ctx is done or the
// browser is closed.
func (b *Browser) Subscribe(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	ch <- b.stateLocked()
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}()
	return ch
}

// Close stops the active stream and closes all subscriptions.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	b.cancel()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *Browser) clampedLocked() int {
	return clamp(b.index, len(b.questions))
}

func (b *Browser) stateLocked() State {
	s := State{
		Chapter:     b.chapter,
		Questions:   b.questions,
		Index:       b.clampedLocked(),
		AnswerShown: b.shown,
	}
	if s.Index < len(b.questions) {
		q := b.questions[s.Index]
		s.Current = &q
	}
	return s
}

func (b *Browser) publishLocked() {
	s := b.stateLocked()
	for ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func clamp(index, n int) int {
	if index >= n {
		index = n - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}
