// Package config provides configuration loading and validation for the
// codegraph analyzer (spec sec 2.1 "Config").
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidWorkers     = errors.New("detect workers must be non-negative")
	ErrInvalidMaxFindings = errors.New("engine max findings must be positive")
	ErrInvalidDebounce    = errors.New("watch debounce must be positive")
	ErrInvalidFailUnder   = errors.New("scoring fail_under must be one of A, B, C, D, F")
)

// Default configuration values.
const (
	defaultPort              = 8080
	defaultHost              = "0.0.0.0"
	defaultEngineMaxFindings = 10_000
	defaultWatchDebounceMS   = 500
	maxPort                  = 65535
)

// Config holds all configuration for the codegraph analyzer, re-sectioned
// from the teacher's Server/Cache/Analysis/Logging/Repository layout into
// this domain's Server/Cache/Detect/Git/Watch/Scoring (spec sec 2.1).
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Detect  DetectConfig  `mapstructure:"detect"`
	Git     GitConfig     `mapstructure:"git"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Scoring ScoringConfig `mapstructure:"scoring"`
}

// ServerConfig holds the tool-protocol/metrics server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
	Enabled      bool          `mapstructure:"enabled"`
}

// CacheConfig holds the graph/blame persistence configuration.
type CacheConfig struct {
	Directory       string        `mapstructure:"directory"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Enabled         bool          `mapstructure:"enabled"`
}

// DetectConfig holds graph-build and detector-engine configuration.
type DetectConfig struct {
	Extensions        []string      `mapstructure:"extensions"`
	Workers           int           `mapstructure:"workers"`
	EngineMaxFindings int           `mapstructure:"engine_max_findings"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// GitConfig holds git-history enrichment configuration.
type GitConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	BlamePrewarmWorkers int  `mapstructure:"blame_prewarm_workers"`
}

// WatchConfig holds filesystem-watch configuration.
type WatchConfig struct {
	Debounce    time.Duration `mapstructure:"debounce"`
	Extensions  []string      `mapstructure:"extensions"`
	IgnoredDirs []string      `mapstructure:"ignored_dirs"`
}

// ScoringConfig holds health-score/grading configuration.
type ScoringConfig struct {
	// FailUnder, when set, makes the analyze command exit non-zero if the
	// computed grade is worse than this letter (e.g. "C" fails on D or F).
	FailUnder string `mapstructure:"fail_under"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/codegraph")
	}

	viperCfg.SetEnvPrefix("CODEGRAPH")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("server.enabled", false)
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")

	viperCfg.SetDefault("cache.enabled", true)
	viperCfg.SetDefault("cache.directory", "")
	viperCfg.SetDefault("cache.ttl", "24h")
	viperCfg.SetDefault("cache.cleanup_interval", "1h")

	viperCfg.SetDefault("detect.extensions", []string{".go", ".py", ".js", ".ts", ".java", ".rb"})
	viperCfg.SetDefault("detect.workers", 0)
	viperCfg.SetDefault("detect.engine_max_findings", defaultEngineMaxFindings)
	viperCfg.SetDefault("detect.timeout", "30m")

	viperCfg.SetDefault("git.enabled", true)
	viperCfg.SetDefault("git.blame_prewarm_workers", 0)

	viperCfg.SetDefault("watch.debounce", fmt.Sprintf("%dms", defaultWatchDebounceMS))
	viperCfg.SetDefault("watch.extensions", []string{".go", ".py", ".js", ".ts", ".java", ".rb"})
	viperCfg.SetDefault("watch.ignored_dirs", []string{".git", "vendor", "node_modules", ".hg", ".svn"})

	viperCfg.SetDefault("scoring.fail_under", "")
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Detect.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Detect.Workers)
	}

	if config.Detect.EngineMaxFindings <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxFindings, config.Detect.EngineMaxFindings)
	}

	if config.Watch.Debounce <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDebounce, config.Watch.Debounce)
	}

	switch config.Scoring.FailUnder {
	case "", "A", "B", "C", "D", "F":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFailUnder, config.Scoring.FailUnder)
	}

	return nil
}
