package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/chopper/internal/domain"
	"github.com/conorfennell/chopper/internal/testutil"
)

func receive(t *testing.T, ch <-chan []domain.Question) []domain.Question {
	t.Helper()
	select {
	case qs, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return qs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	questions := append(testutil.Questions(1, 3, "A"), testutil.Questions(4, 2, "B")...)
	repo, _ := testutil.NewRepository(t, questions...)

	first, err := repo.Snapshot(ctx)
	require.NoError(t, err)

	_, err = repo.InsertQuestions(ctx, questions)
	require.NoError(t, err)

	second, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestStatusRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := testutil.NewRepository(t, testutil.Question(1, "A"))

	for _, s := range []domain.Status{domain.Forgot, domain.Vague, domain.Known, domain.Mastered} {
		s := s
		require.NoError(t, repo.UpdateStatus(ctx, 1, true, &s))
		q, err := repo.Find(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, q)
		assert.True(t, q.IsAnswered)
		require.NotNil(t, q.Status)
		assert.Equal(t, s, *q.Status)
	}

	require.NoError(t, repo.UpdateStatus(ctx, 1, false, nil))
	q, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, q.Status)
	assert.Equal(t, domain.Forgot, q.CurrentStatus())
}

func TestFindMissing(t *testing.T) {
	repo, _ := testutil.NewRepository(t)
	q, err := repo.Find(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestObserveAllReemitsOnWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo, _ := testutil.NewRepository(t, testutil.Questions(1, 2, "A")...)

	stream := repo.ObserveAll(ctx)
	assert.Len(t, receive(t, stream), 2)

	_, err := repo.InsertQuestions(ctx, []domain.Question{testutil.Question(3, "B")})
	require.NoError(t, err)
	got := receive(t, stream)
	require.Len(t, got, 3)
	assert.Equal(t, 3, got[2].ID)

	mastered := domain.Mastered
	require.NoError(t, repo.UpdateStatus(ctx, 1, true, &mastered))
	got = receive(t, stream)
	require.NotNil(t, got[0].Status)
	assert.Equal(t, domain.Mastered, *got[0].Status)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-stream:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestObserveByChapterMultipleSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo, _ := testutil.NewRepository(t, append(testutil.Questions(1, 2, "A"), testutil.Questions(3, 1, "B")...)...)

	a := repo.ObserveByChapter(ctx, "A")
	b := repo.ObserveByChapter(ctx, "B")
	all := repo.ObserveAll(ctx)

	assert.Len(t, receive(t, a), 2)
	assert.Len(t, receive(t, b), 1)
	assert.Len(t, receive(t, all), 3)

	_, err := repo.InsertQuestions(ctx, []domain.Question{testutil.Question(4, "A")})
	require.NoError(t, err)

	assert.Len(t, receive(t, a), 3)
	assert.Len(t, receive(t, b), 1)
	assert.Len(t, receive(t, all), 4)
}

func TestUpdateStatusAsync(t *testing.T) {
	ctx := context.Background()
	repo, _ := testutil.NewRepository(t, testutil.Question(1, "A"))

	repo.UpdateStatusAsync(1, true, domain.Known)
	repo.Wait()

	q, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Known, q.CurrentStatus())
	assert.True(t, q.IsAnswered)
}

func TestUpdateStatusAsyncReportsFailures(t *testing.T) {
	repo, db := testutil.NewRepository(t, testutil.Question(1, "A"))
	require.NoError(t, db.Close())

	repo.UpdateStatusAsync(1, true, domain.Vague)
	repo.Wait()

	select {
	case err := <-repo.Errors():
		assert.ErrorContains(t, err, "question 1")
	default:
		t.Fatal("expected a background error")
	}
}

func TestConcurrentWritesAreSafe(t *testing.T) {
	ctx := context.Background()
	questions := testutil.Questions(1, 20, "A")
	repo, _ := testutil.NewRepository(t, questions...)

	var g errgroup.Group
	for _, q := range questions {
		id := q.ID
		g.Go(func() error {
			s := domain.Vague
			return repo.UpdateStatus(ctx, id, true, &s)
		})
	}
	g.Go(func() error {
		_, err := repo.InsertQuestions(ctx, questions)
		return err
	})
	require.NoError(t, g.Wait())

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestUpdateStatusAsyncKeepsCallOrder(t *testing.T) {
	ctx := context.Background()
	repo, _ := testutil.NewRepository(t, testutil.Question(1, "A"))

	sequence := []domain.Status{domain.Known, domain.Forgot, domain.Mastered, domain.Vague}
	for i := 0; i < 10; i++ {
		for _, s := range sequence {
			repo.UpdateStatusAsync(1, true, s)
		}
	}
	repo.Wait()

	q, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Vague, q.CurrentStatus())
}
