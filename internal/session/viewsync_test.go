package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opennewsroom/storyreel/internal/domain"
	"github.com/opennewsroom/storyreel/internal/metrics"
	"github.com/opennewsroom/storyreel/pkg/logger"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	stubStoryRepo

	mu         sync.Mutex
	increments map[uuid.UUID]int
	incErr     error
	readErr    error
}

func newCountingRepo() *countingRepo {
	return &countingRepo{increments: make(map[uuid.UUID]int)}
}

func (r *countingRepo) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.incErr != nil {
		return r.incErr
	}
	r.increments[id]++
	return nil
}

func (r *countingRepo) GetViewCount(ctx context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return 0, r.readErr
	}
	return r.increments[id], nil
}

func (r *countingRepo) count(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.increments[id]
}

func TestViewSyncerIncrementsAndPatches(t *testing.T) {
	repo := newCountingRepo()
	syncer, err := NewViewSyncer(2, repo, logger.New(logger.Opts{Env: "production"}), metrics.New())
	require.NoError(t, err)
	t.Cleanup(syncer.Release)

	id := uuid.New()
	var mu sync.Mutex
	var patched []int

	syncer.Submit(id, func(count int) {
		mu.Lock()
		patched = append(patched, count)
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(patched) == 1 && patched[0] == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, 1, repo.count(id))
}

func TestViewSyncerSwallowsFailures(t *testing.T) {
	repo := newCountingRepo()
	repo.incErr = errors.New("backend down")

	syncer, err := NewViewSyncer(1, repo, logger.New(logger.Opts{Env: "production"}), metrics.New())
	require.NoError(t, err)
	t.Cleanup(syncer.Release)

	id := uuid.New()
	patchCalled := make(chan struct{}, 1)
	syncer.Submit(id, func(int) { patchCalled <- struct{}{} })

	select {
	case <-patchCalled:
		t.Fatal("patch must not run when the increment fails")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, 0, repo.count(id))
}

// A session wired to the real syncer still plays on when the counter
// backend is down.
func TestPlaybackSurvivesViewSyncFailure(t *testing.T) {
	repo := newCountingRepo()
	repo.incErr = errors.New("backend down")

	syncer, err := NewViewSyncer(1, repo, logger.New(logger.Opts{Env: "production"}), metrics.New())
	require.NoError(t, err)
	t.Cleanup(syncer.Release)

	items := []domain.StoryItem{imageStory("a"), imageStory("b")}
	s, err := New(Opts{
		Items:  items,
		Logger: logger.New(logger.Opts{Env: "production"}),
		Views:  syncer,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	s.Next()
	snap := s.Snapshot()
	require.Equal(t, 1, snap.Index)
	require.Equal(t, StatePlaying, snap.State)
}
