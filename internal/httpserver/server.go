package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opennewsroom/storyreel/internal/feed"
	"github.com/opennewsroom/storyreel/internal/metrics"
	"github.com/opennewsroom/storyreel/internal/ratelimit"
	"github.com/opennewsroom/storyreel/internal/repositories/story"
	"github.com/opennewsroom/storyreel/internal/session"
	"github.com/opennewsroom/storyreel/pkg/config"
	"github.com/opennewsroom/storyreel/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In
	LC fx.Lifecycle

	Logger    logger.Logger
	Config    *config.Config
	Feed      *feed.Feed
	Manager   *session.Manager
	StoryRepo story.Repository
	Metrics   *metrics.Metrics
}

type Server struct {
	logger    logger.Logger
	feed      *feed.Feed
	manager   *session.Manager
	storyRepo story.Repository
	metrics   *metrics.Metrics
	router    chi.Router
	srv       *http.Server
}

func New(opts Opts) *Server {
	s := &Server{
		logger:    opts.Logger,
		feed:      opts.Feed,
		manager:   opts.Manager,
		storyRepo: opts.StoryRepo,
		metrics:   opts.Metrics,
	}

	limiter := ratelimit.NewInMemoryLimiter(
		opts.Config.RateLimit.Requests,
		opts.Config.RateLimit.Per,
		opts.Config.RateLimit.Burst,
	)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit(limiter))

		r.Get("/stories", s.handleListStories)

		r.Post("/sessions", s.handleOpenSession)
		r.Get("/sessions/{sessionID}", s.handleGetSession)
		r.Post("/sessions/{sessionID}/events", s.handleSessionEvent)
		r.Delete("/sessions/{sessionID}", s.handleCloseSession)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/stories", s.handleCreateStory)
			r.Delete("/stories/{storyID}", s.handleDeactivateStory)
		})
	})
	s.router = r

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Config.App.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	opts.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				s.logger.Info(fmt.Sprintf("Starting server on :%d", opts.Config.App.Port))
				if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.logger.Error("Server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.srv.Shutdown(ctx)
		},
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}
