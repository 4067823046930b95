package config

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/mickamy/pgdot/internal/errs"
)

// EnvPrefix prefixes every environment override, e.g. PGDOT_SERVER_ADDRESS.
const EnvPrefix = "PGDOT"

// Config holds tunables for logging, rendering, insight scoring and the HTTP service.
type Config struct {
	Log      LogConfig     `mapstructure:"log" json:"log"`
	Render   RenderConfig  `mapstructure:"render" json:"render"`
	Insights InsightConfig `mapstructure:"insights" json:"insights"`
	Server   ServerConfig  `mapstructure:"server" json:"server"`
}

// LogConfig selects the log level (debug, info, warn, error).
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
}

// RenderConfig holds defaults for the render command and the HTTP endpoint.
type RenderConfig struct {
	GraphID  string `mapstructure:"graph_id" json:"graph_id"`
	Format   string `mapstructure:"format" json:"format"`
	Color    bool   `mapstructure:"color" json:"color"`
	MaxDepth int    `mapstructure:"max_depth" json:"max_depth"`
	Strict   bool   `mapstructure:"strict" json:"strict"`
}

// InsightConfig defines thresholds for insight generation. Percentages are fractions in [0, 1].
type InsightConfig struct {
	HotspotCriticalPercent float64 `mapstructure:"hotspot_critical_percent" json:"hotspot_critical_percent"`
	HotspotWarningPercent  float64 `mapstructure:"hotspot_warning_percent" json:"hotspot_warning_percent"`
	CostHotspotPercent     float64 `mapstructure:"cost_hotspot_percent" json:"cost_hotspot_percent"`
	TriggerWarningPercent  float64 `mapstructure:"trigger_warning_percent" json:"trigger_warning_percent"`
	MaxMessages            int     `mapstructure:"max_messages" json:"max_messages"`
}

// ServerConfig configures `pgdot serve`.
type ServerConfig struct {
	Address string `mapstructure:"address" json:"address"`
	// Database is the sqlite path of the render archive; empty disables archiving.
	Database        string        `mapstructure:"database" json:"database"`
	Metrics         bool          `mapstructure:"metrics" json:"metrics"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" json:"max_body_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

var (
	mu     sync.RWMutex
	active = Default()
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Render: RenderConfig{
			GraphID:  "explain",
			Format:   "dot",
			Color:    true,
			MaxDepth: 0,
		},
		Insights: InsightConfig{
			HotspotCriticalPercent: 0.40,
			HotspotWarningPercent:  0.20,
			CostHotspotPercent:     0.50,
			TriggerWarningPercent:  0.10,
			MaxMessages:            8,
		},
		Server: ServerConfig{
			Address:         ":8080",
			Metrics:         true,
			MaxBodyBytes:    10 << 20,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Active returns the currently applied configuration.
func Active() Config {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Use replaces the active configuration.
func Use(cfg Config) {
	mu.Lock()
	active = cfg
	mu.Unlock()
}

// Apply loads configuration from the provided path (YAML, JSON or TOML by extension)
// and overlays PGDOT_* environment variables. Empty path applies defaults plus environment.
func Apply(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	Use(cfg)
	return nil
}

// Load reads the configuration without activating it.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errs.Wrap(err, errs.CodeInvalidConfig, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, errs.CodeInvalidConfig, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("log.level", cfg.Log.Level)

	v.SetDefault("render.graph_id", cfg.Render.GraphID)
	v.SetDefault("render.format", cfg.Render.Format)
	v.SetDefault("render.color", cfg.Render.Color)
	v.SetDefault("render.max_depth", cfg.Render.MaxDepth)
	v.SetDefault("render.strict", cfg.Render.Strict)

	v.SetDefault("insights.hotspot_critical_percent", cfg.Insights.HotspotCriticalPercent)
	v.SetDefault("insights.hotspot_warning_percent", cfg.Insights.HotspotWarningPercent)
	v.SetDefault("insights.cost_hotspot_percent", cfg.Insights.CostHotspotPercent)
	v.SetDefault("insights.trigger_warning_percent", cfg.Insights.TriggerWarningPercent)
	v.SetDefault("insights.max_messages", cfg.Insights.MaxMessages)

	v.SetDefault("server.address", cfg.Server.Address)
	v.SetDefault("server.database", cfg.Server.Database)
	v.SetDefault("server.metrics", cfg.Server.Metrics)
	v.SetDefault("server.max_body_bytes", cfg.Server.MaxBodyBytes)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errs.Newf(errs.CodeInvalidConfig, "log.level: unknown level %q", c.Log.Level)
	}
	for name, p := range map[string]float64{
		"insights.hotspot_critical_percent": c.Insights.HotspotCriticalPercent,
		"insights.hotspot_warning_percent":  c.Insights.HotspotWarningPercent,
		"insights.cost_hotspot_percent":     c.Insights.CostHotspotPercent,
		"insights.trigger_warning_percent":  c.Insights.TriggerWarningPercent,
	} {
		if p < 0 || p > 1 {
			return errs.Newf(errs.CodeInvalidConfig, "%s: %v is outside [0, 1]", name, p)
		}
	}
	if c.Insights.HotspotWarningPercent > c.Insights.HotspotCriticalPercent {
		return errs.New(errs.CodeInvalidConfig, "insights: warning threshold exceeds critical threshold")
	}
	if c.Render.MaxDepth < 0 {
		return errs.New(errs.CodeInvalidConfig, "render.max_depth: must not be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errs.New(errs.CodeInvalidConfig, "server.max_body_bytes: must be positive")
	}
	return nil
}
