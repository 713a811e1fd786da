package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 1200.0, cfg.Game.WorldWidth)
	assert.Equal(t, 30, cfg.Game.TickRate)
	assert.Equal(t, 5*time.Second, cfg.Game.ResultsDuration)
	assert.Equal(t, 16*time.Millisecond, cfg.Server.BroadcastInterval)
	assert.Equal(t, 60.0, cfg.RateLimits.Move)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.json")
	body := `{
		"game": { "worldWidth": 1600, "roundDuration": "90s" },
		"server": { "addr": ":9090" },
		"rateLimits": { "chat": 2 }
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1600.0, cfg.Game.WorldWidth)
	assert.Equal(t, 800.0, cfg.Game.WorldHeight)
	assert.Equal(t, 90*time.Second, cfg.Game.RoundDuration)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2.0, cfg.RateLimits.Chat)
	assert.Equal(t, 60.0, cfg.RateLimits.Move)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ARENA_SERVER_ADDR", ":7070")
	t.Setenv("ARENA_GAME_TICKRATE", "20")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Game.TickRate)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/arena.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidateRejectsBrokenRanges(t *testing.T) {
	cfg := Default()
	cfg.Game.TickRate = 0
	cfg.Delta.MinFullInterval = 50
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick rate")
	assert.Contains(t, err.Error(), "full interval")
}

func TestValidateRejectsFrameCapBelowMessageLimit(t *testing.T) {
	cfg := Default()
	cfg.Server.MaxFrameBytes = cfg.Server.MaxMessageBytes - 1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max frame bytes")
	assert.Equal(t, 64<<10, Default().Server.MaxFrameBytes)
}

func TestClientJSONUsesMilliseconds(t *testing.T) {
	blob, err := Default().Game.ClientJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(blob), &decoded))
	assert.Equal(t, 1200.0, decoded["CANVAS_WIDTH"])
	assert.Equal(t, 3000.0, decoded["RESPAWN_TIME"])
	assert.Equal(t, 120000.0, decoded["GAME_DURATION"])
}

func TestWriteTOMLIncludesSections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTOML(&buf, Default()))

	out := buf.String()
	assert.Contains(t, out, "[game]")
	assert.Contains(t, out, "[server]")
	assert.Contains(t, out, "worldWidth")
}

func TestTickInterval(t *testing.T) {
	g := Default().Game
	assert.Equal(t, time.Second/30, g.TickInterval())
	g.TickRate = 0
	assert.Equal(t, time.Second/30, g.TickInterval())
}
