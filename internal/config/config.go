// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Server holds the table server settings.
type Server struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// RedisAddr enables action history when set.
	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`
	QueueName string `env:"HISTORIAN_QUEUE_NAME" envDefault:"cambia_ar_actions"`

	// DatabaseURL enables result recording when set.
	DatabaseURL string `env:"DATABASE_URL"`

	// TokenExpireTime is how long table tokens stay valid. Zero means they never expire.
	TokenExpireTime time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"0s"`
	// EffectTimeout bounds how long the server waits for a client to finish an animation.
	EffectTimeout time.Duration `env:"EFFECT_TIMEOUT" envDefault:"10s"`
}

// Historian holds the action history consumer settings.
type Historian struct {
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	RedisAddr   string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB     int           `env:"REDIS_DB" envDefault:"0"`
	QueueName   string        `env:"HISTORIAN_QUEUE_NAME" envDefault:"cambia_ar_actions"`
	DatabaseURL string        `env:"DATABASE_URL,notEmpty"`
	BatchSize   int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	FlushDelay  time.Duration `env:"HISTORIAN_FLUSH_DELAY" envDefault:"500ms"`
	PopTimeout  time.Duration `env:"HISTORIAN_POP_TIMEOUT" envDefault:"3s"`
	Inactivity  time.Duration `env:"SESSION_INACTIVITY_TIMEOUT" envDefault:"10m"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer reads the table server settings.
func LoadServer() (Server, error) {
	var cfg Server
	err := ParseEnv(&cfg)
	return cfg, err
}

// LoadHistorian reads the historian settings.
func LoadHistorian() (Historian, error) {
	var cfg Historian
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.BatchSize < 1 {
		return cfg, fmt.Errorf("HISTORIAN_BATCH_SIZE must be at least 1")
	}
	return cfg, nil
}

// NewLogger builds a logger at level, falling back to info for unknown names.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
