package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Roster  RosterConfig  `yaml:"roster" mapstructure:"roster"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Sync    SyncConfig    `yaml:"sync" mapstructure:"sync"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Map     MapConfig     `yaml:"map" mapstructure:"map"`
	History HistoryConfig `yaml:"history" mapstructure:"history"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// RosterConfig locates the roster sheet and describes its layout.
type RosterConfig struct {
	URL        string        `yaml:"url" mapstructure:"url"`
	SheetID    string        `yaml:"sheet_id" mapstructure:"sheet_id"`
	Sheet      string        `yaml:"sheet" mapstructure:"sheet"`
	Format     string        `yaml:"format" mapstructure:"format"`
	HeaderRows int           `yaml:"header_rows" mapstructure:"header_rows"`
	Columns    ColumnsConfig `yaml:"columns" mapstructure:"columns"`
	// StatusLabels replaces the built-in label table. A list rather than a
	// map because viper lower-cases map keys.
	StatusLabels []StatusLabel `yaml:"status_labels" mapstructure:"status_labels"`
}

// ColumnsConfig holds zero-based column indices; -1 disables a column.
type ColumnsConfig struct {
	ID          int `yaml:"id" mapstructure:"id"`
	Name        int `yaml:"name" mapstructure:"name"`
	Address     int `yaml:"address" mapstructure:"address"`
	Status      int `yaml:"status" mapstructure:"status"`
	Coordinates int `yaml:"coordinates" mapstructure:"coordinates"`
}

// StatusLabel maps one roster label to a canonical status name.
type StatusLabel struct {
	Label  string `yaml:"label" mapstructure:"label"`
	Status string `yaml:"status" mapstructure:"status"`
}

// GeocodeConfig configures address resolution.
type GeocodeConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Region      string  `yaml:"region" mapstructure:"region"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// CircuitThreshold consecutive provider failures open the breaker for
	// CircuitResetSecs.
	CircuitThreshold int `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs int `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// SyncConfig configures the sync cadence and geocoding cooldown.
type SyncConfig struct {
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`
	CooldownEvery int           `yaml:"cooldown_every" mapstructure:"cooldown_every"`
	Cooldown      time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
}

// FetchConfig configures roster downloads.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// ServerConfig configures the map server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MapConfig configures the map page and marker layer.
type MapConfig struct {
	Title     string  `yaml:"title" mapstructure:"title"`
	TileURL   string  `yaml:"tile_url" mapstructure:"tile_url"`
	CenterLat float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon float64 `yaml:"center_lon" mapstructure:"center_lon"`
	Zoom      int     `yaml:"zoom" mapstructure:"zoom"`
	// Base, when enabled, is drawn as a home marker with dashed links to
	// every unit.
	BaseEnabled bool    `yaml:"base_enabled" mapstructure:"base_enabled"`
	BaseLat     float64 `yaml:"base_lat" mapstructure:"base_lat"`
	BaseLon     float64 `yaml:"base_lon" mapstructure:"base_lon"`
	BaseLabel   string  `yaml:"base_label" mapstructure:"base_label"`
	Links       bool    `yaml:"links" mapstructure:"links"`
}

// HistoryConfig configures the optional cycle history database.
type HistoryConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROSTERMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys without one are invisible to AutomaticEnv during
	// Unmarshal, so secrets and locations get an empty default.
	v.SetDefault("roster.url", "")
	v.SetDefault("roster.sheet_id", "")
	v.SetDefault("roster.sheet", "")
	v.SetDefault("roster.format", "gviz")
	v.SetDefault("roster.header_rows", 1)
	v.SetDefault("roster.columns.id", 0)
	v.SetDefault("roster.columns.name", 1)
	v.SetDefault("roster.columns.address", 2)
	v.SetDefault("roster.columns.status", 3)
	v.SetDefault("roster.columns.coordinates", 4)
	v.SetDefault("geocode.provider", "xyz")
	v.SetDefault("geocode.api_key", "")
	v.SetDefault("geocode.base_url", "")
	v.SetDefault("geocode.region", "")
	v.SetDefault("geocode.rate_limit", 2.0)
	v.SetDefault("geocode.timeout_secs", 15)
	v.SetDefault("geocode.circuit_threshold", 5)
	v.SetDefault("geocode.circuit_reset_secs", 60)
	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.cooldown_every", 10)
	v.SetDefault("sync.cooldown", 100*time.Millisecond)
	v.SetDefault("fetch.user_agent", "rostermap/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("map.title", "rostermap")
	v.SetDefault("map.tile_url", "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png")
	v.SetDefault("map.center_lat", 31.5)
	v.SetDefault("map.center_lon", 34.8)
	v.SetDefault("map.zoom", 8)
	v.SetDefault("map.base_enabled", true)
	v.SetDefault("map.base_lat", 30.65093635405422)
	v.SetDefault("map.base_lon", 34.79744931815025)
	v.SetDefault("map.base_label", "Base")
	v.SetDefault("map.links", true)
	v.SetDefault("history.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "serve",
// "sync", "geocode" or "history".
func (c *Config) Validate(mode string) error {
	var errs []string

	needRoster := func() {
		if c.Roster.URL == "" && c.Roster.SheetID == "" {
			errs = append(errs, "roster.url or roster.sheet_id is required")
		}
		switch c.Roster.Format {
		case "gviz", "csv", "xlsx":
		default:
			errs = append(errs, fmt.Sprintf("roster.format must be gviz, csv or xlsx, got %q", c.Roster.Format))
		}
		if c.Roster.Columns.ID < 0 {
			errs = append(errs, "roster.columns.id must be >= 0")
		}
		if c.Sync.CooldownEvery < 0 || c.Sync.Cooldown < 0 {
			errs = append(errs, "sync.cooldown_every and sync.cooldown must be >= 0")
		}
	}
	needGeocoder := func() {
		switch c.Geocode.Provider {
		case "xyz":
		case "google":
			if c.Geocode.APIKey == "" {
				errs = append(errs, "geocode.api_key is required for the google provider")
			}
		default:
			errs = append(errs, fmt.Sprintf("geocode.provider must be xyz or google, got %q", c.Geocode.Provider))
		}
		if c.Geocode.RateLimit <= 0 {
			errs = append(errs, "geocode.rate_limit must be > 0")
		}
	}

	switch mode {
	case "serve":
		needRoster()
		needGeocoder()
		if c.Sync.Interval <= 0 {
			errs = append(errs, "sync.interval must be > 0")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "sync":
		needRoster()
		needGeocoder()
	case "geocode":
		needGeocoder()
	case "history":
		if c.History.DSN == "" {
			errs = append(errs, "history.dsn is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
