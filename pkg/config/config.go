package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT"`
		Host    string `env:"POSTGRES_HOST"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Playback struct {
		ImageDuration   time.Duration `env:"PLAYBACK_IMAGE_DURATION" env-default:"5s"`
		ProgressTicks   int           `env:"PLAYBACK_PROGRESS_TICKS" env-default:"50"`
		SwipeThreshold  float64       `env:"PLAYBACK_SWIPE_THRESHOLD_PX" env-default:"50"`
		SessionIdleTTL  time.Duration `env:"PLAYBACK_SESSION_IDLE_TTL" env-default:"2m"`
		ViewSyncWorkers int           `env:"PLAYBACK_VIEW_SYNC_WORKERS" env-default:"4"`
	}
	Cleanup struct {
		InactiveAfter time.Duration `env:"CLEANUP_INACTIVE_AFTER" env-default:"720h"`
		Interval      time.Duration `env:"CLEANUP_INTERVAL" env-default:"24h"`
	}
	RateLimit struct {
		Requests int           `env:"RATE_LIMIT_REQUESTS" env-default:"10"`
		Per      time.Duration `env:"RATE_LIMIT_PER" env-default:"1s"`
		Burst    int           `env:"RATE_LIMIT_BURST" env-default:"20"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}

// GetDSN returns the postgres connection string in URL form.
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Pass,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.Name,
		c.Postgres.SslMode,
	)
}
