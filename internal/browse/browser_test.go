package browse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/chopper/internal/domain"
	"github.com/conorfennell/chopper/internal/testutil"
)

func waitFor(t *testing.T, b *Browser, cond func(State) bool) State {
	t.Helper()
	var s State
	require.Eventually(t, func() bool {
		s = b.State()
		return cond(s)
	}, 2*time.Second, 5*time.Millisecond)
	return s
}

func loaded(chapter string, n int) func(State) bool {
	return func(s State) bool { return s.Chapter == chapter && len(s.Questions) == n }
}

func newBrowser(t *testing.T, questions ...domain.Question) *Browser {
	t.Helper()
	repo, _ := testutil.NewRepository(t, questions...)
	b := New(context.Background(), repo, testutil.Logger())
	t.Cleanup(b.Close)
	return b
}

func TestNoChapterIsEmptyState(t *testing.T) {
	b := newBrowser(t)
	_, ok := b.Current()
	assert.False(t, ok)

	b.Next()
	b.Prev()
	assert.Equal(t, 0, b.State().Index)
}

func TestCursorClamping(t *testing.T) {
	const n = 4
	b := newBrowser(t, testutil.Questions(1, n, "A")...)
	b.SelectChapter("A")
	waitFor(t, b, loaded("A", n))

	for i := 0; i < n+5; i++ {
		b.Next()
		assert.LessOrEqual(t, b.State().Index, n-1)
	}
	s := b.State()
	assert.Equal(t, n-1, s.Index)
	require.NotNil(t, s.Current)
	assert.Equal(t, n, s.Current.ID)

	for i := 0; i < n+5; i++ {
		b.Prev()
	}
	q, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, 0, b.State().Index)
	assert.Equal(t, 1, q.ID)
}

func TestToggleAnswer(t *testing.T) {
	b := newBrowser(t, testutil.Questions(1, 2, "A")...)
	b.SelectChapter("A")
	waitFor(t, b, loaded("A", 2))

	b.ToggleAnswer()
	assert.True(t, b.State().AnswerShown)
	assert.Equal(t, 0, b.State().Index)

	b.ToggleAnswer()
	assert.False(t, b.State().AnswerShown)

	b.ToggleAnswer()
	b.Next()
	b.ResetAnswerVisibility()
	s := b.State()
	assert.False(t, s.AnswerShown)
	assert.Equal(t, 1, s.Index)
}

func TestSelectChapterSwitchesStream(t *testing.T) {
	b := newBrowser(t, append(testutil.Questions(1, 5, "A"), testutil.Questions(10, 2, "B")...)...)

	b.SelectChapter("A")
	waitFor(t, b, loaded("A", 5))
	b.Next()
	b.Next()
	b.Next()

	b.SelectChapter("B")
	s := waitFor(t, b, loaded("B", 2))
	for _, q := range s.Questions {
		assert.Equal(t, "B", q.Chapter)
	}
	// The cursor is kept but clamped to the shorter list.
	assert.Equal(t, 1, s.Index)
	require.NotNil(t, s.Current)
	assert.Equal(t, 11, s.Current.ID)

	b.SelectChapter("A")
	s = waitFor(t, b, loaded("A", 5))
	assert.Equal(t, 3, s.Index)
}

func TestSupersededStreamIsDropped(t *testing.T) {
	src := &fakeObserver{streams: make(map[string]chan []domain.Question)}
	b := New(context.Background(), src, testutil.Logger())
	defer b.Close()

	b.SelectChapter("A")
	b.SelectChapter("B")

	// A late emission from the old chapter must not be applied.
	src.send("A", testutil.Questions(1, 3, "A"))
	src.send("B", testutil.Questions(10, 1, "B"))

	s := waitFor(t, b, loaded("B", 1))
	assert.Equal(t, "B", s.Questions[0].Chapter)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "B", b.State().Chapter)
	assert.Len(t, b.State().Questions, 1)
}

func TestLiveUpdates(t *testing.T) {
	ctx := context.Background()
	repo, _ := testutil.NewRepository(t, testutil.Questions(1, 2, "A")...)
	b := New(ctx, repo, testutil.Logger())
	defer b.Close()

	b.SelectChapter("A")
	waitFor(t, b, loaded("A", 2))

	known := domain.Known
	require.NoError(t, repo.UpdateStatus(ctx, 1, true, &known))
	waitFor(t, b, func(s State) bool {
		return len(s.Questions) == 2 && s.Questions[0].Status != nil && *s.Questions[0].Status == domain.Known
	})
}

func TestSubscribe(t *testing.T) {
	b := newBrowser(t, testutil.Questions(1, 3, "A")...)
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx)
	first := <-ch
	assert.Equal(t, "", first.Chapter)

	b.SelectChapter("A")
	require.Eventually(t, func() bool {
		select {
		case s := <-ch:
			return s.Chapter == "A" && len(s.Questions) == 3
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 5*time.Millisecond)
}

type fakeObserver struct {
	mu      sync.Mutex
	streams map[string]chan []domain.Question
}

func (f *fakeObserver) ObserveByChapter(ctx context.Context, chapter string) <-chan []domain.Question {
	ch := make(chan []domain.Question, 1)
	f.mu.Lock()
	f.streams[chapter] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeObserver) send(chapter string, qs []domain.Question) {
	f.mu.Lock()
	ch := f.streams[chapter]
	f.mu.Unlock()
	ch <- qs
}
