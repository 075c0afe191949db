package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/warfront/internal/engine"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warfront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "data/warfront.db", cfg.DBPath)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "", cfg.API.AdminKey)
	assert.Equal(t, 120, cfg.API.CommandRate)
	assert.Equal(t, engine.DefaultMaxStep, cfg.Sim.MaxStep)
	assert.Equal(t, engine.DefaultTickRate, cfg.Sim.TickRate)
	assert.Equal(t, int64(42), cfg.Sim.Seed)
	assert.Equal(t, 20.0, cfg.Sim.StuckSeconds)
	assert.Equal(t, 60.0, cfg.Catchup.GapThreshold)
	assert.Equal(t, 300.0, cfg.Catchup.IntervalSeconds)
	assert.Equal(t, uint64(150), cfg.Catchup.Grant)
	assert.Zero(t, cfg.Catchup.MaxTotal)
	assert.Equal(t, 3, cfg.Campaign.Factions)
	assert.Equal(t, uint64(200), cfg.Prices.SquadLevel)
	assert.Equal(t, engine.DefaultOptions(), cfg.Options())
	assert.Equal(t, engine.DefaultCampaignConfig(), cfg.CampaignConfig())
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
debug: true
api:
  port: 9090
  adminKey: hunter2
sim:
  seed: 7
  stuckSeconds: 12
catchup:
  gapThreshold: 80
  maxTotal: 900
campaign:
  factions: 4
  sites: 6
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.True(t, cfg.Options().Debug)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "hunter2", cfg.API.AdminKey)
	assert.Equal(t, int64(7), cfg.CampaignConfig().Seed)
	assert.Equal(t, 12.0, cfg.Options().StuckSeconds)
	assert.Equal(t, 80.0, cfg.Options().Catchup.GapThreshold)
	assert.Equal(t, uint64(900), cfg.Options().Catchup.MaxTotal)
	assert.Equal(t, 4, cfg.CampaignConfig().Factions)
	assert.Equal(t, 6, cfg.CampaignConfig().Sites)
	assert.Equal(t, uint64(150), cfg.Options().Catchup.Grant, "unset keys keep their defaults")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "api:\n  port: 9090\n")
	t.Setenv("WARFRONT_API_PORT", "7070")
	t.Setenv("WARFRONT_API_ADMINKEY", "from-env")
	t.Setenv("WARFRONT_CATCHUP_GRANT", "250")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.API.Port)
	assert.Equal(t, "from-env", cfg.API.AdminKey)
	assert.Equal(t, uint64(250), cfg.Catchup.Grant)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/warfront.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"step too large", "sim:\n  maxStep: 0.5\n", "sim.maxStep"},
		{"one faction", "campaign:\n  factions: 1\n", "campaign.factions"},
		{"too few sites", "campaign:\n  factions: 4\n  sites: 3\n", "campaign.sites"},
		{"zero tick rate", "sim:\n  tickRate: 0\n", "sim.tickRate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSlogLevel_Fallback(t *testing.T) {
	cfg := &Config{LogLevel: "chatty"}
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	cfg.LogLevel = "warn"
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
}

func TestEngine(t *testing.T) {
	cfg := &Config{Sim: SimConfig{MaxStep: 0.02, TickRate: 50, ReportSeconds: 30, AutosaveSeconds: 120}}
	e := cfg.Engine()
	assert.Equal(t, 20*time.Millisecond, e.Interval)
	assert.Equal(t, 0.02, e.MaxStep)
	assert.Equal(t, 30.0, e.ReportEvery)
	assert.Equal(t, 120.0, e.AutosaveEvery)
}
