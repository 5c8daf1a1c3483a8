package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/opennewsroom/storyreel/internal/feed"
	"github.com/opennewsroom/storyreel/internal/metrics"
	"github.com/opennewsroom/storyreel/internal/repositories/story"
	"github.com/opennewsroom/storyreel/pkg/config"
	"github.com/opennewsroom/storyreel/pkg/logger"
	"go.uber.org/fx"
)

type ManagerOpts struct {
	fx.In
	LC fx.Lifecycle

	Logger    logger.Logger
	Config    *config.Config
	Clock     clockwork.Clock
	Feed      *feed.Feed
	StoryRepo story.Repository
	Metrics   *metrics.Metrics
}

// Manager owns the live playback sessions: it opens them against a
// fresh feed snapshot, hands out lookups for the event API, and evicts
// the ones nobody is driving anymore.
type Manager struct {
	logger  logger.Logger
	cfg     *config.Config
	clock   clockwork.Clock
	feed    *feed.Feed
	views   *ViewSyncer
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(opts ManagerOpts) (*Manager, error) {
	views, err := NewViewSyncer(opts.Config.Playback.ViewSyncWorkers, opts.StoryRepo, opts.Logger, opts.Metrics)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		logger:   opts.Logger,
		cfg:      opts.Config,
		clock:    opts.Clock,
		feed:     opts.Feed,
		views:    views,
		metrics:  opts.Metrics,
		sessions: make(map[string]*Session),
	}

	opts.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			m.CloseAll()
			m.views.Release()
			return nil
		},
	})

	return m, nil
}

// Open loads a fresh feed snapshot and starts a session at startIndex.
// An empty feed or out-of-range index means no session opens.
func (m *Manager) Open(ctx context.Context, startIndex int) (*Session, error) {
	items := m.feed.Load(ctx)
	if len(items) == 0 {
		return nil, ErrNothingToPlay
	}

	s, err := New(Opts{
		Items:      items,
		StartIndex: startIndex,
		Config: Config{
			ImageDuration:  m.cfg.Playback.ImageDuration,
			ProgressTicks:  m.cfg.Playback.ProgressTicks,
			SwipeThreshold: m.cfg.Playback.SwipeThreshold,
		},
		Logger:  m.logger,
		Clock:   m.clock,
		Views:   m.views,
		OnClose: m.metrics.SessionsClosed.Inc,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.metrics.SessionsOpened.Inc()
	m.logger.Info("Opened playback session", "session_id", s.ID, "start_index", startIndex, "items", len(items))
	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close closes and forgets the session. Returns false when no session
// with that id is known.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	return true
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// SweepIdle drops sessions already closed by their own transitions and
// closes the ones idle past ttl. Returns the number evicted.
func (m *Manager) SweepIdle(ttl time.Duration) int {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.IsClosed() {
			delete(m.sessions, id)
			continue
		}
		if m.clock.Since(s.LastActive()) > ttl {
			delete(m.sessions, id)
			stale = append(stale, s)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
		m.metrics.SessionsEvicted.Inc()
		m.logger.Info("Evicted idle playback session", "session_id", s.ID)
	}
	return len(stale)
}
