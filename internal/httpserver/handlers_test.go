package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/opennewsroom/storyreel/internal/domain"
	"github.com/opennewsroom/storyreel/internal/feed"
	"github.com/opennewsroom/storyreel/internal/metrics"
	"github.com/opennewsroom/storyreel/internal/repositories/story"
	"github.com/opennewsroom/storyreel/internal/session"
	"github.com/opennewsroom/storyreel/pkg/config"
	"github.com/opennewsroom/storyreel/pkg/logger"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

type stubStoryRepo struct {
	listActiveFn func(ctx context.Context) ([]domain.StoryItem, error)
	createFn     func(ctx context.Context, item domain.StoryItem) (uuid.UUID, error)
	deactivateFn func(ctx context.Context, id uuid.UUID) error
}

func (r *stubStoryRepo) ListActive(ctx context.Context) ([]domain.StoryItem, error) {
	return r.listActiveFn(ctx)
}
func (r *stubStoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.StoryItem, error) {
	return nil, story.ErrNotFound
}
func (r *stubStoryRepo) Create(ctx context.Context, item domain.StoryItem) (uuid.UUID, error) {
	return r.createFn(ctx, item)
}
func (r *stubStoryRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.deactivateFn(ctx, id)
}
func (r *stubStoryRepo) IncrementViewCount(ctx context.Context, id uuid.UUID) error { return nil }
func (r *stubStoryRepo) GetViewCount(ctx context.Context, id uuid.UUID) (int, error) { return 0, nil }
func (r *stubStoryRepo) CleanupInactive(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func newTestServer(t *testing.T, repo *stubStoryRepo) *Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Port = 0
	cfg.Playback.ImageDuration = 5 * time.Second
	cfg.Playback.ProgressTicks = 50
	cfg.Playback.SwipeThreshold = 50
	cfg.Playback.SessionIdleTTL = 2 * time.Minute
	cfg.Playback.ViewSyncWorkers = 2
	cfg.RateLimit.Requests = 1000
	cfg.RateLimit.Per = time.Second
	cfg.RateLimit.Burst = 1000

	log := logger.New(logger.Opts{Env: "production"})
	m := metrics.New()
	lc := fxtest.NewLifecycle(t)
	f := feed.New(feed.Opts{Logger: log, StoryRepo: repo, Metrics: m})

	mgr, err := session.NewManager(session.ManagerOpts{
		LC:        lc,
		Logger:    log,
		Config:    cfg,
		Clock:     clockwork.NewFakeClock(),
		Feed:      f,
		StoryRepo: repo,
		Metrics:   m,
	})
	require.NoError(t, err)
	t.Cleanup(mgr.CloseAll)

	return New(Opts{
		LC:        fxtest.NewLifecycle(t),
		Logger:    log,
		Config:    cfg,
		Feed:      f,
		Manager:   mgr,
		StoryRepo: repo,
		Metrics:   m,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func activeItems() []domain.StoryItem {
	return []domain.StoryItem{
		{ID: uuid.New(), Title: "first", ImageURL: "https://cdn.example.com/1.jpg", ViewCount: 4, CreatedAt: time.Now()},
		{ID: uuid.New(), Title: "second", VideoURL: "https://cdn.example.com/2.mp4", CreatedAt: time.Now().Add(-time.Hour)},
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubStoryRepo{
		listActiveFn: func(ctx context.Context) ([]domain.StoryItem, error) { return nil, nil },
	})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestListStories(t *testing.T) {
	items := activeItems()
	srv := newTestServer(t, &stubStoryRepo{
		listActiveFn: func(ctx context.Context) ([]domain.StoryItem, error) { return items, nil },
	})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/stories", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tiles []storyTile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tiles))
	require.Len(t, tiles, 2)
	require.Equal(t, items[0].ID, tiles[0].ID)
	require.Equal(t, domain.MediaKindImage, tiles[0].MediaKind)
	require.Equal(t, "New", tiles[0].Badge)
	require.Equal(t, items[1].ID, tiles[1].ID)
	require.Equal(t, domain.MediaKindVideo, tiles[1].MediaKind)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	items := activeItems()
	srv := newTestServer(t, &stubStoryRepo{
		listActiveFn: func(ctx context.Context) ([]domain.StoryItem, error) { return items, nil },
	})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", openSessionRequest{StartIndex: 0})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sess sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	require.Equal(t, session.StatePlaying, sess.State)
	require.Equal(t, items[0].ID, sess.Item.ID)

	base := fmt.Sprintf("/api/sessions/%s", sess.ID)

	rec = doJSON(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Tap pauses.
	rec = doJSON(t, h, http.MethodPost, base+"/events", sessionEventRequest{Type: "tap"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	require.Equal(t, session.StatePaused, sess.State)

	// A full swipe advances to the video, which waits for metadata.
	doJSON(t, h, http.MethodPost, base+"/events", sessionEventRequest{Type: "tap"})
	rec = doJSON(t, h, http.MethodPost, base+"/events", sessionEventRequest{Type: "touch", DeltaPX: 50})
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	require.Equal(t, 1, sess.Index)
	require.Equal(t, session.StateLoading, sess.State)

	rec = doJSON(t, h, http.MethodPost, base+"/events", sessionEventRequest{Type: "media_loaded", DurationMS: 8000})
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	require.Equal(t, session.StatePlaying, sess.State)
	require.Equal(t, int64(8000), sess.DurationMS)

	rec = doJSON(t, h, http.MethodPost, base+"/events", sessionEventRequest{Type: "bogus"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenSessionWithEmptyFeed(t *testing.T) {
	srv := newTestServer(t, &stubStoryRepo{
		listActiveFn: func(ctx context.Context) ([]domain.StoryItem, error) { return nil, nil },
	})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/sessions", openSessionRequest{StartIndex: 0})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestOpenSessionWithBadIndex(t *testing.T) {
	srv := newTestServer(t, &stubStoryRepo{
		listActiveFn: func(ctx context.Context) ([]domain.StoryItem, error) { return activeItems(), nil },
	})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/sessions", openSessionRequest{StartIndex: 9})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminCreateStory(t *testing.T) {
	wantID := uuid.New()
	srv := newTestServer(t, &stubStoryRepo{
		listActiveFn: func(ctx context.Context) ([]domain.StoryItem, error) { return nil, nil },
		createFn: func(ctx context.Context, item domain.StoryItem) (uuid.UUID, error) {
			require.Equal(t, "breaking", item.Title)
			return wantID, nil
		},
	})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/admin/stories", createStoryRequest{
		Title:    "breaking",
		ImageURL: "https://cdn.example.com/b.jpg",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]uuid.UUID
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, wantID, resp["id"])

	// Stories need a title and at least one media URL.
	rec = doJSON(t, h, http.MethodPost, "/api/admin/stories", createStoryRequest{ImageURL: "https://x/y.jpg"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/admin/stories", createStoryRequest{Title: "no media"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminDeactivateStory(t *testing.T) {
	known := uuid.New()
	srv := newTestServer(t, &stubStoryRepo{
		listActiveFn: func(ctx context.Context) ([]domain.StoryItem, error) { return nil, nil },
		deactivateFn: func(ctx context.Context, id uuid.UUID) error {
			if id == known {
				return nil
			}
			return story.ErrNotFound
		},
	})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodDelete, "/api/admin/stories/"+known.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/admin/stories/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/admin/stories/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorIsNotExposedWhenRepoFails(t *testing.T) {
	srv := newTestServer(t, &stubStoryRepo{
		listActiveFn: func(ctx context.Context) ([]domain.StoryItem, error) {
			return nil, errors.New("secret connection string leaked")
		},
	})

	// The feed degrades to empty instead of surfacing the failure.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stories", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}
