// internal/config/config.go

// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config is shared by the server and historian binaries.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// AllowedOrigins are the browser origins allowed by CORS.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"https://*,http://*"`

	// DatabaseURL selects the Postgres store; empty runs on the in-memory store.
	DatabaseURL string `env:"DATABASE_URL"`

	// RedisAddr enables the match event stream when set.
	RedisAddr  string `env:"REDIS_ADDR"`
	RedisDB    int    `env:"REDIS_DB" envDefault:"0"`
	EventQueue string `env:"MATCH_EVENT_QUEUE" envDefault:"match_events"`

	DiscordToken string `env:"DISCORD_TOKEN"`

	ProviderBaseURL  string `env:"PROVIDER_BASE_URL" envDefault:"https://dathost.net"`
	ProviderEmail    string `env:"PROVIDER_EMAIL"`
	ProviderPassword string `env:"PROVIDER_PASSWORD"`

	// PublicBaseURL is where the provider reaches the callback routes.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	MapPool              []string      `env:"MAP_POOL" envSeparator:"," envDefault:"de_dust2,de_mirage,de_inferno,de_nuke,de_overpass,de_vertigo,de_ancient"`
	ReadyTimeout         time.Duration `env:"READY_TIMEOUT" envDefault:"60s"`
	DraftTimeout         time.Duration `env:"DRAFT_TIMEOUT" envDefault:"180s"`
	VetoTimeout          time.Duration `env:"VETO_TIMEOUT" envDefault:"180s"`
	RegionTimeout        time.Duration `env:"REGION_TIMEOUT" envDefault:"60s"`
	ReachabilityAttempts int           `env:"REACHABILITY_ATTEMPTS" envDefault:"5"`
	ReachabilityDelay    time.Duration `env:"REACHABILITY_DELAY" envDefault:"3s"`
	MatchBeginCountdown  int           `env:"MATCH_BEGIN_COUNTDOWN" envDefault:"15"`

	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	TokenExpire       time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"24h"`

	HistorianBatchSize     int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"100"`
	HistorianFlushInterval time.Duration `env:"HISTORIAN_FLUSH_INTERVAL" envDefault:"2s"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	for name, d := range map[string]time.Duration{
		"READY_TIMEOUT":            c.ReadyTimeout,
		"DRAFT_TIMEOUT":            c.DraftTimeout,
		"VETO_TIMEOUT":             c.VetoTimeout,
		"REGION_TIMEOUT":           c.RegionTimeout,
		"REACHABILITY_DELAY":       c.ReachabilityDelay,
		"HISTORIAN_FLUSH_INTERVAL": c.HistorianFlushInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.ReachabilityAttempts < 1 {
		errs = append(errs, errors.New("REACHABILITY_ATTEMPTS must be at least 1"))
	}
	if len(c.MapPool) == 0 {
		errs = append(errs, errors.New("MAP_POOL must not be empty"))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
