// Package config loads runtime settings: built-in defaults, an optional
// warfront.yaml, then WARFRONT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/talgya/warfront/internal/economy"
	"github.com/talgya/warfront/internal/engine"
	"github.com/talgya/warfront/internal/progression"
)

// EnvPrefix prefixes every environment override, e.g. WARFRONT_API_PORT.
const EnvPrefix = "WARFRONT"

// Config is the resolved runtime configuration.
type Config struct {
	LogLevel string         `mapstructure:"logLevel"`
	Debug    bool           `mapstructure:"debug"`
	DBPath   string         `mapstructure:"dbPath"`
	API      APIConfig      `mapstructure:"api"`
	Sim      SimConfig      `mapstructure:"sim"`
	Catchup  CatchupConfig  `mapstructure:"catchup"`
	Campaign CampaignConfig `mapstructure:"campaign"`
	Prices   PriceConfig    `mapstructure:"prices"`
	Gamedata GamedataConfig `mapstructure:"gamedata"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Port        int    `mapstructure:"port"`
	AdminKey    string `mapstructure:"adminKey"`
	CommandRate int    `mapstructure:"commandRate"` // POST requests per minute per client
}

// SimConfig holds loop settings.
type SimConfig struct {
	MaxStep         float64 `mapstructure:"maxStep"`
	TickRate        int     `mapstructure:"tickRate"`
	Seed            int64   `mapstructure:"seed"`
	AutosaveSeconds float64 `mapstructure:"autosaveSeconds"`
	ReportSeconds   float64 `mapstructure:"reportSeconds"`
	StuckSeconds    float64 `mapstructure:"stuckSeconds"`
}

// CatchupConfig tunes the rubberband controller.
type CatchupConfig struct {
	GapThreshold    float64 `mapstructure:"gapThreshold"`
	IntervalSeconds float64 `mapstructure:"intervalSeconds"`
	Grant           uint64  `mapstructure:"grant"`
	MaxTotal        uint64  `mapstructure:"maxTotal"`
}

// CampaignConfig sizes a freshly generated campaign.
type CampaignConfig struct {
	Factions          int    `mapstructure:"factions"`
	Sites             int    `mapstructure:"sites"`
	EnemiesPerFaction int    `mapstructure:"enemiesPerFaction"`
	Allies            int    `mapstructure:"allies"`
	Grouped           int    `mapstructure:"grouped"`
	StartGold         uint64 `mapstructure:"startGold"`
}

// PriceConfig holds upgrade prices in gold.
type PriceConfig struct {
	SquadLevel uint64 `mapstructure:"squadLevel"`
	SquadTier  uint64 `mapstructure:"squadTier"`
}

// GamedataConfig points at an optional tables override.
type GamedataConfig struct {
	Path string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	camp := engine.DefaultCampaignConfig()
	catchup := economy.DefaultConfig()
	prices := progression.DefaultPrices()

	v.SetDefault("logLevel", "info")
	v.SetDefault("debug", false)
	v.SetDefault("dbPath", "data/warfront.db")

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.adminKey", "")
	v.SetDefault("api.commandRate", 120)

	v.SetDefault("sim.maxStep", engine.DefaultMaxStep)
	v.SetDefault("sim.tickRate", engine.DefaultTickRate)
	v.SetDefault("sim.seed", camp.Seed)
	v.SetDefault("sim.autosaveSeconds", 300)
	v.SetDefault("sim.reportSeconds", 60)
	v.SetDefault("sim.stuckSeconds", engine.DefaultOptions().StuckSeconds)

	v.SetDefault("catchup.gapThreshold", catchup.GapThreshold)
	v.SetDefault("catchup.intervalSeconds", catchup.Interval)
	v.SetDefault("catchup.grant", catchup.Grant)
	v.SetDefault("catchup.maxTotal", catchup.MaxTotal)

	v.SetDefault("campaign.factions", camp.Factions)
	v.SetDefault("campaign.sites", camp.Sites)
	v.SetDefault("campaign.enemiesPerFaction", camp.EnemiesPerFaction)
	v.SetDefault("campaign.allies", camp.Allies)
	v.SetDefault("campaign.grouped", camp.Grouped)
	v.SetDefault("campaign.startGold", camp.StartGold)

	v.SetDefault("prices.squadLevel", prices.SquadLevel)
	v.SetDefault("prices.squadTier", prices.SquadTier)

	v.SetDefault("gamedata.path", "")
}

// Load resolves the configuration. An empty path looks for warfront.yaml in
// the working directory and tolerates its absence; an explicit path must
// exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("warfront")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("config file loaded", "path", used)
	}
	return &cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Sim.MaxStep <= 0 || c.Sim.MaxStep > engine.DefaultMaxStep:
		return fmt.Errorf("sim.maxStep must be in (0, %v], got %v", engine.DefaultMaxStep, c.Sim.MaxStep)
	case c.Sim.TickRate <= 0:
		return fmt.Errorf("sim.tickRate must be positive, got %d", c.Sim.TickRate)
	case c.Campaign.Factions < 2:
		return fmt.Errorf("campaign.factions must be at least 2, got %d", c.Campaign.Factions)
	case c.Campaign.Sites < c.Campaign.Factions:
		return fmt.Errorf("campaign.sites (%d) must cover one home site per faction (%d)", c.Campaign.Sites, c.Campaign.Factions)
	case c.Catchup.IntervalSeconds <= 0:
		return fmt.Errorf("catchup.intervalSeconds must be positive, got %v", c.Catchup.IntervalSeconds)
	case c.API.Port < 0 || c.API.Port > 65535:
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	return nil
}

// SlogLevel maps logLevel to a slog level; unknown names fall back to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Options returns the simulation tuning.
func (c *Config) Options() engine.Options {
	return engine.Options{
		Debug:        c.Debug,
		StuckSeconds: c.Sim.StuckSeconds,
		Catchup: economy.Config{
			GapThreshold: c.Catchup.GapThreshold,
			Interval:     c.Catchup.IntervalSeconds,
			Grant:        c.Catchup.Grant,
			MaxTotal:     c.Catchup.MaxTotal,
		},
		Prices: progression.Prices{
			SquadLevel: c.Prices.SquadLevel,
			SquadTier:  c.Prices.SquadTier,
		},
	}
}

// CampaignConfig returns the new-campaign sizing.
func (c *Config) CampaignConfig() engine.CampaignConfig {
	return engine.CampaignConfig{
		Seed:              c.Sim.Seed,
		Factions:          c.Campaign.Factions,
		Sites:             c.Campaign.Sites,
		EnemiesPerFaction: c.Campaign.EnemiesPerFaction,
		Allies:            c.Campaign.Allies,
		Grouped:           c.Campaign.Grouped,
		StartGold:         c.Campaign.StartGold,
	}
}

// Engine configures a loop from the sim settings.
func (c *Config) Engine() *engine.Engine {
	e := engine.NewEngine()
	e.Interval = time.Second / time.Duration(c.Sim.TickRate)
	e.MaxStep = c.Sim.MaxStep
	e.ReportEvery = c.Sim.ReportSeconds
	e.AutosaveEvery = c.Sim.AutosaveSeconds
	return e
}
