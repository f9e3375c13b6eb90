package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mcdev12/trivia/go/internal/arena"
	"github.com/mcdev12/trivia/go/internal/match"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/mcdev12/trivia/go/internal/publish"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`

	Game struct {
		Defaults         models.Settings     `yaml:"defaults"`
		Scoring          match.ScoringConfig `yaml:"scoring"`
		TickInterval     time.Duration       `yaml:"tick_interval" validate:"gt=0"`
		RevealDelay      time.Duration       `yaml:"reveal_delay" validate:"gte=0"`
		SelectTimeout    time.Duration       `yaml:"select_timeout" validate:"gt=0"`
		StrictInvariants bool                `yaml:"strict_invariants"`
	} `yaml:"game"`

	Arena struct {
		MaxSessions   int           `yaml:"max_sessions" validate:"gte=0"`
		FinishedTTL   time.Duration `yaml:"finished_ttl"`
		LobbyTTL      time.Duration `yaml:"lobby_ttl"`
		SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`
	} `yaml:"arena"`

	Questions struct {
		// BankPath loads a YAML bank instead of the built-in one. Ignored
		// when a database is configured.
		BankPath string `yaml:"bank_path"`
	} `yaml:"questions"`

	Events struct {
		NATSURL       string        `yaml:"nats_url"`
		StreamName    string        `yaml:"stream_name"`
		SubjectPrefix string        `yaml:"subject_prefix"`
		BufferSize    int           `yaml:"buffer_size" validate:"gt=0"`
		MaxRetries    int           `yaml:"max_retries" validate:"gte=0"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
	} `yaml:"events"`
}

// defaultConfig mirrors the production defaults of each package.
func defaultConfig() *Config {
	var cfg Config

	cfg.Server.Port = "8080"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Server.AllowedOrigins = []string{"*"}

	ad := arena.DefaultConfig()
	cfg.Game.Defaults = ad.Defaults
	cfg.Game.Scoring = ad.Scoring
	cfg.Game.TickInterval = ad.TickInterval
	cfg.Game.RevealDelay = ad.RevealDelay
	cfg.Game.SelectTimeout = ad.SelectTimeout

	cfg.Arena.MaxSessions = ad.MaxSessions
	cfg.Arena.FinishedTTL = ad.FinishedTTL
	cfg.Arena.LobbyTTL = ad.LobbyTTL
	cfg.Arena.SweepInterval = ad.SweepInterval

	js := publish.DefaultJetStreamConfig()
	dc := publish.DefaultDispatcherConfig()
	cfg.Events.StreamName = js.StreamName
	cfg.Events.SubjectPrefix = js.SubjectPrefix
	cfg.Events.BufferSize = dc.BufferSize
	cfg.Events.MaxRetries = dc.MaxRetries
	cfg.Events.RetryDelay = dc.RetryDelay

	return &cfg
}

// loadConfig layers the optional YAML file and then the environment over
// the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Game.TickInterval = getEnvAsDuration("TICK_INTERVAL", cfg.Game.TickInterval)
	cfg.Game.RevealDelay = getEnvAsDuration("REVEAL_DELAY", cfg.Game.RevealDelay)
	cfg.Game.StrictInvariants = getEnvAsBool("STRICT_INVARIANTS", cfg.Game.StrictInvariants)
	cfg.Arena.MaxSessions = getEnvAsInt("MAX_SESSIONS", cfg.Arena.MaxSessions)
	cfg.Questions.BankPath = getEnv("QUESTION_BANK", cfg.Questions.BankPath)
	cfg.Events.NATSURL = getEnv("NATS_URL", cfg.Events.NATSURL)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) arenaConfig() arena.Config {
	return arena.Config{
		Defaults:         c.Game.Defaults,
		Scoring:          c.Game.Scoring,
		TickInterval:     c.Game.TickInterval,
		RevealDelay:      c.Game.RevealDelay,
		SelectTimeout:    c.Game.SelectTimeout,
		MaxSessions:      c.Arena.MaxSessions,
		FinishedTTL:      c.Arena.FinishedTTL,
		LobbyTTL:         c.Arena.LobbyTTL,
		SweepInterval:    c.Arena.SweepInterval,
		StrictInvariants: c.Game.StrictInvariants,
	}
}

func (c *Config) dispatcherConfig() publish.DispatcherConfig {
	dc := publish.DefaultDispatcherConfig()
	dc.BufferSize = c.Events.BufferSize
	dc.MaxRetries = c.Events.MaxRetries
	dc.RetryDelay = c.Events.RetryDelay
	return dc
}

func (c *Config) jetStreamConfig() publish.JetStreamConfig {
	js := publish.DefaultJetStreamConfig()
	js.URL = c.Events.NATSURL
	js.StreamName = c.Events.StreamName
	js.SubjectPrefix = c.Events.SubjectPrefix
	return js
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
