package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultConfigPath is read when no --config flag is given. It may be absent.
const DefaultConfigPath = "zipcrack.toml"

// Environment variables that override the config file
const (
	EnvThreads   = "ZIPCRACK_THREADS"
	EnvCharset   = "ZIPCRACK_CHARSET"
	EnvMinLength = "ZIPCRACK_MIN_LENGTH"
	EnvMaxLength = "ZIPCRACK_MAX_LENGTH"
	EnvOutputDir = "ZIPCRACK_OUTPUT_DIR"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load reads and parses the configuration file and environment variables.
// A missing file at DefaultConfigPath yields the defaults.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath == "" {
		configPath = DefaultConfigPath
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		// Parse TOML
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && configPath == DefaultConfigPath:
		// No config file: defaults and environment only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment overrides the file
	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Additional input validation
	if err := cfg.ValidateInputs(); err != nil {
		return nil, fmt.Errorf("input validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnv overrides file values with ZIPCRACK_* environment variables
func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvCharset); v != "" {
		cfg.Search.Charset = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		cfg.Output.Dir = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvThreads, &cfg.Search.Threads},
		{EnvMinLength, &cfg.Search.MinLength},
		{EnvMaxLength, &cfg.Search.MaxLength},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer (got %q)", e.name, v)
		}
		*e.dst = n
	}
	return nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Search defaults
	if cfg.Search.Charset == "" {
		cfg.Search.Charset = "lower"
	}
	if cfg.Search.MinLength == 0 {
		cfg.Search.MinLength = 1
	}
	if cfg.Search.MaxLength == 0 {
		cfg.Search.MaxLength = DefaultMaxLength(cfg.Search.MinLength)
	}
	if cfg.Search.HandleMode == "" {
		cfg.Search.HandleMode = HandleModeAttempt
	}
	if cfg.Search.Preload == nil {
		cfg.Search.Preload = BoolPtr(true)
	}
	// Threads stay 0 here; ResolveThreads picks the CPU count at run time

	// Output defaults
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "output"
	}
	if cfg.Output.WriteResults == nil {
		cfg.Output.WriteResults = BoolPtr(true)
	}
	if cfg.Output.Progress == nil {
		cfg.Output.Progress = BoolPtr(true)
	}
}

// DefaultMaxLength is the max_length used when only min_length is given
func DefaultMaxLength(minLength int) int {
	if minLength > 6 {
		return minLength
	}
	return 6
}
