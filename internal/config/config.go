package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/yegors/co-los/pkg/logger"
)

// Environment variables that override file values
const (
	EnvOpenSkyUsername = "CO_LOS_OPENSKY_USERNAME"
	EnvOpenSkyPassword = "CO_LOS_OPENSKY_PASSWORD"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig    `toml:"server"`
	Logging  LoggingConfig   `toml:"logging"`
	OpenSky  OpenSkyConfig   `toml:"opensky"`
	Snapshot SnapshotConfig  `toml:"snapshot"`
	Analysis AnalysisConfig  `toml:"analysis"`
	Storage  StorageConfig   `toml:"storage"`
	Carriers []CarrierConfig `toml:"carriers"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host                   string   `toml:"host"`
	Port                   int      `toml:"port"`
	ReadTimeoutSeconds     int      `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int      `toml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds"`
	AllowedOrigins         []string `toml:"allowed_origins"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// OpenSkyConfig contains feed client settings
type OpenSkyConfig struct {
	URL                       string `toml:"url"`
	Username                  string `toml:"username"`
	Password                  string `toml:"password"`
	TimeoutSeconds            int    `toml:"timeout_seconds"`
	MaxRetries                int    `toml:"max_retries"`
	MinRequestIntervalSeconds int    `toml:"min_request_interval_seconds"`
}

// SnapshotConfig controls how often the aircraft snapshot is refreshed
type SnapshotConfig struct {
	RefreshIntervalSeconds int  `toml:"refresh_interval_seconds"`
	BackgroundRefresh      bool `toml:"background_refresh"`
}

// AnalysisConfig contains analysis defaults
type AnalysisConfig struct {
	DefaultRangeKm     float64   `toml:"default_range_km"`
	MaxDistanceRecords int       `toml:"max_distance_records"`
	DistanceBinsKm     []float64 `toml:"distance_bins_km"`
	CacheSize          int       `toml:"cache_size"`
	CacheTTLSeconds    int       `toml:"cache_ttl_seconds"`
}

// StorageConfig contains persistence settings. An empty path keeps
// carrier ranges in memory only.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"`
}

// CarrierConfig is one tracked carrier
type CarrierConfig struct {
	Code           string  `toml:"code"`
	Name           string  `toml:"name"`
	DefaultRangeKm float64 `toml:"default_range_km"`
}

// DefaultCarriers returns the built-in carrier table
func DefaultCarriers() []CarrierConfig {
	return []CarrierConfig{
		{Code: "AAL", Name: "American Airlines", DefaultRangeKm: 200},
		{Code: "DAL", Name: "Delta Air Lines", DefaultRangeKm: 200},
		{Code: "UAL", Name: "United Airlines", DefaultRangeKm: 200},
		{Code: "SWA", Name: "Southwest Airlines", DefaultRangeKm: 180},
		{Code: "DLH", Name: "Lufthansa", DefaultRangeKm: 220},
		{Code: "BAW", Name: "British Airways", DefaultRangeKm: 220},
		{Code: "AFR", Name: "Air France", DefaultRangeKm: 220},
		{Code: "UAE", Name: "Emirates", DefaultRangeKm: 240},
		{Code: "QTR", Name: "Qatar Airways", DefaultRangeKm: 240},
		{Code: "SIA", Name: "Singapore Airlines", DefaultRangeKm: 220},
		{Code: "JAL", Name: "Japan Airlines", DefaultRangeKm: 200},
		{Code: "KLM", Name: "KLM Royal Dutch Airlines", DefaultRangeKm: 220},
		{Code: "IBE", Name: "Iberia", DefaultRangeKm: 200},
		{Code: "ANA", Name: "All Nippon Airways", DefaultRangeKm: 200},
		{Code: "THA", Name: "Thai Airways", DefaultRangeKm: 200},
		{Code: "QFA", Name: "Qantas", DefaultRangeKm: 220},
		{Code: "TAM", Name: "LATAM", DefaultRangeKm: 200},
		{Code: "TUR", Name: "Turkish Airlines", DefaultRangeKm: 220},
		{Code: "ETD", Name: "Etihad Airways", DefaultRangeKm: 240},
		{Code: "CXA", Name: "Cathay Pacific", DefaultRangeKm: 220},
		{Code: "CSN", Name: "China Southern", DefaultRangeKm: 200},
		{Code: "CES", Name: "China Eastern", DefaultRangeKm: 200},
		{Code: "CAL", Name: "China Airlines", DefaultRangeKm: 200},
		{Code: "KAL", Name: "Korean Air", DefaultRangeKm: 200},
		{Code: "VIR", Name: "Virgin Atlantic", DefaultRangeKm: 220},
	}
}

// Default returns a configuration with the built-in defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8080,
			ReadTimeoutSeconds:     15,
			WriteTimeoutSeconds:    60,
			ShutdownTimeoutSeconds: 10,
			AllowedOrigins:         []string{"*"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		OpenSky: OpenSkyConfig{
			URL:                       "https://opensky-network.org/api/states/all",
			TimeoutSeconds:            30,
			MaxRetries:                3,
			MinRequestIntervalSeconds: 10,
		},
		Snapshot: SnapshotConfig{
			RefreshIntervalSeconds: 900,
			BackgroundRefresh:      false,
		},
		Analysis: AnalysisConfig{
			DefaultRangeKm:     200,
			MaxDistanceRecords: 100,
			DistanceBinsKm:     []float64{0, 50, 100, 150, 200},
			CacheSize:          128,
			CacheTTLSeconds:    900,
		},
		Storage: StorageConfig{
			SQLitePath: "data/co-los.db",
		},
		Carriers: DefaultCarriers(),
	}
}

// Load reads a TOML file over the defaults. An empty path yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// Arrays in the file replace the defaults rather than merge with them
		cfg.Carriers = nil
		cfg.Server.AllowedOrigins = nil
		cfg.Analysis.DistanceBinsKm = nil

		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
		}

		defaults := Default()
		if !md.IsDefined("carriers") {
			cfg.Carriers = defaults.Carriers
		}
		if !md.IsDefined("server", "allowed_origins") {
			cfg.Server.AllowedOrigins = defaults.Server.AllowedOrigins
		}
		if !md.IsDefined("analysis", "distance_bins_km") {
			cfg.Analysis.DistanceBinsKm = defaults.Analysis.DistanceBinsKm
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	if username := os.Getenv(EnvOpenSkyUsername); username != "" {
		c.OpenSky.Username = username
	}
	if password := os.Getenv(EnvOpenSkyPassword); password != "" {
		c.OpenSky.Password = password
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if !logger.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level invalid: %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be json or console: %q", c.Logging.Format))
	}
	if c.OpenSky.URL == "" {
		errs = append(errs, errors.New("opensky.url is required"))
	}
	if c.OpenSky.MaxRetries < 0 {
		errs = append(errs, errors.New("opensky.max_retries must not be negative"))
	}
	if c.Snapshot.RefreshIntervalSeconds <= 0 {
		errs = append(errs, errors.New("snapshot.refresh_interval_seconds must be positive"))
	}
	if !positive(c.Analysis.DefaultRangeKm) {
		errs = append(errs, errors.New("analysis.default_range_km must be positive"))
	}
	if c.Analysis.MaxDistanceRecords <= 0 {
		errs = append(errs, errors.New("analysis.max_distance_records must be positive"))
	}
	if len(c.Analysis.DistanceBinsKm) == 0 {
		errs = append(errs, errors.New("analysis.distance_bins_km must not be empty"))
	} else if !sort.Float64sAreSorted(c.Analysis.DistanceBinsKm) || c.Analysis.DistanceBinsKm[0] < 0 {
		errs = append(errs, errors.New("analysis.distance_bins_km must be ascending and non-negative"))
	}

	seen := make(map[string]bool, len(c.Carriers))
	for i, carrier := range c.Carriers {
		code := strings.ToUpper(strings.TrimSpace(carrier.Code))
		if code == "" {
			errs = append(errs, fmt.Errorf("carriers[%d].code is required", i))
			continue
		}
		if seen[code] {
			errs = append(errs, fmt.Errorf("carriers[%d]: duplicate code %s", i, code))
		}
		seen[code] = true
		if !positive(carrier.DefaultRangeKm) {
			errs = append(errs, fmt.Errorf("carriers[%d]: default_range_km must be positive", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the HTTP listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RefreshInterval returns the snapshot refresh interval
func (s SnapshotConfig) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

// CacheTTL returns how long analysis results are kept
func (a AnalysisConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLSeconds) * time.Second
}

// LoggerConfig converts the logging section for pkg/logger
func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}
}

// Encode writes the configuration as TOML, with the OpenSky password masked
func (c *Config) Encode(w io.Writer) error {
	masked := *c
	if masked.OpenSky.Password != "" {
		masked.OpenSky.Password = "********"
	}
	return toml.NewEncoder(w).Encode(masked)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
