package config

import (
	"fmt"
	"strings"

	"github.com/lamim/zipcrack/internal/charset"
)

// Config represents the complete application configuration
type Config struct {
	Search  SearchConfig  `toml:"search"`
	Output  OutputConfig  `toml:"output"`
	Metrics MetricsConfig `toml:"metrics"`
}

// SearchConfig holds the brute-force search bounds
type SearchConfig struct {
	Charset       string `toml:"charset"`        // Preset name (digits, lower, upper, alnum, complex) or "custom"
	CustomCharset string `toml:"custom_charset"` // Characters used when charset = "custom"
	MinLength     int    `toml:"min_length"`
	MaxLength     int    `toml:"max_length"`
	Threads       int    `toml:"threads"`     // 0 = one worker per logical CPU
	HandleMode    string `toml:"handle_mode"` // "attempt" (default) or "worker"
	Preload       *bool  `toml:"preload"`     // Read the archive into memory when it fits (default: true)
}

// OutputConfig holds session output settings
type OutputConfig struct {
	Dir          string `toml:"dir"`           // Parent of session_<timestamp> directories (default: output)
	WriteResults *bool  `toml:"write_results"` // Append results.jsonl to the session directory (default: true)
	Progress     *bool  `toml:"progress"`      // Draw a progress bar per length tier (default: true)
}

// MetricsConfig holds the optional Prometheus endpoint
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"` // e.g. "127.0.0.1:9090"; empty disables the endpoint
}

const (
	// MaxThreads is the maximum allowed worker count
	MaxThreads = 1024
	// MaxPasswordLength is the longest candidate length accepted
	MaxPasswordLength = 64

	// HandleModeAttempt opens an archive handle per candidate
	HandleModeAttempt = "attempt"
	// HandleModeWorker opens one archive handle per worker
	HandleModeWorker = "worker"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := c.Alphabet(); err != nil {
		return fmt.Errorf("search.charset: %w", err)
	}

	if c.Search.MinLength < 1 {
		return fmt.Errorf("search.min_length must be at least 1 (got %d)", c.Search.MinLength)
	}
	if c.Search.MaxLength < c.Search.MinLength {
		return fmt.Errorf("search.max_length (%d) must not be less than search.min_length (%d)", c.Search.MaxLength, c.Search.MinLength)
	}
	if c.Search.MaxLength > MaxPasswordLength {
		return fmt.Errorf("search.max_length must not exceed %d (got %d)", MaxPasswordLength, c.Search.MaxLength)
	}

	if c.Search.Threads < 0 {
		return fmt.Errorf("search.threads must be 0 (auto) or positive (got %d)", c.Search.Threads)
	}
	if c.Search.Threads > MaxThreads {
		return fmt.Errorf("search.threads must not exceed %d (got %d)", MaxThreads, c.Search.Threads)
	}

	switch c.Search.HandleMode {
	case HandleModeAttempt, HandleModeWorker:
	default:
		return fmt.Errorf("search.handle_mode must be one of: %s, %s (got %s)", HandleModeAttempt, HandleModeWorker, c.Search.HandleMode)
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}

	return nil
}

// Warnings lists settings that are valid but probably not what the user
// meant. Validate may run more than once, so callers report these once.
func (c *Config) Warnings() []string {
	var warnings []string
	// Custom alphabets with repeats still work, they just test some passwords twice
	if strings.EqualFold(c.Search.Charset, charset.PresetCustom) && charset.HasDuplicates(charset.Alphabet(c.Search.CustomCharset)) {
		warnings = append(warnings, "search.custom_charset contains duplicate characters, some candidates will be tested more than once")
	}
	return warnings
}

// Alphabet resolves the configured charset
func (c *Config) Alphabet() (charset.Alphabet, error) {
	return charset.Resolve(c.Search.Charset, c.Search.CustomCharset)
}

// PreloadEnabled reports whether archives should be read into memory
func (c *Config) PreloadEnabled() bool {
	return c.Search.Preload == nil || *c.Search.Preload
}

// WriteResultsEnabled reports whether results.jsonl should be written
func (c *Config) WriteResultsEnabled() bool {
	return c.Output.WriteResults == nil || *c.Output.WriteResults
}

// ProgressEnabled reports whether progress bars should be drawn
func (c *Config) ProgressEnabled() bool {
	return c.Output.Progress == nil || *c.Output.Progress
}

// BoolPtr returns a pointer to b, for optional boolean settings
func BoolPtr(b bool) *bool {
	return &b
}
