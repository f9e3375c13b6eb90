package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trivia.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("NATS_URL", "")

	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15, cfg.Game.Defaults.SecondsPerQuestion)
	assert.Equal(t, 100, cfg.Game.Scoring.BasePoints)
	assert.Equal(t, time.Second, cfg.Game.TickInterval)
	assert.Empty(t, cfg.Events.NATSURL)
	assert.Equal(t, "TRIVIA_EVENTS", cfg.jetStreamConfig().StreamName)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
game:
  defaults:
    max_players: 4
    question_count: 5
    seconds_per_question: 20
  scoring:
    base_points: 200
    speed_bonus_per_second: 5
    streak_threshold: 2
    streak_bonus: 25
  reveal_delay: 2s
arena:
  lobby_ttl: 30m
`)
	t.Setenv("PORT", "9100")
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("TICK_INTERVAL", "500ms")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port, "environment wins over the file")
	assert.Equal(t, 4, cfg.Game.Defaults.MaxPlayers)
	assert.Equal(t, 200, cfg.Game.Scoring.BasePoints)
	assert.Equal(t, 2*time.Second, cfg.Game.RevealDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Game.TickInterval)

	ac := cfg.arenaConfig()
	assert.Equal(t, 30*time.Minute, ac.LobbyTTL)
	assert.Equal(t, 5, ac.Defaults.QuestionCount)
	assert.Equal(t, "nats://broker:4222", cfg.jetStreamConfig().URL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "")

	tests := []struct {
		name string
		body string
	}{
		{name: "bad yaml", body: "game: [unclosed"},
		{name: "defaults out of range", body: "game:\n  defaults:\n    max_players: 1\n    question_count: 5\n    seconds_per_question: 20\n"},
		{name: "zero tick", body: "game:\n  tick_interval: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
