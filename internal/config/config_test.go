package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		Search: SearchConfig{
			Charset:   "lower",
			MinLength: 1,
			MaxLength: 4,
			Threads:   4,
		},
	}
	applyDefaults(&cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "auto threads",
			mutate: func(c *Config) { c.Search.Threads = 0 },
		},
		{
			name: "custom charset",
			mutate: func(c *Config) {
				c.Search.Charset = "custom"
				c.Search.CustomCharset = "xyz"
			},
		},
		{
			name:    "unknown charset",
			mutate:  func(c *Config) { c.Search.Charset = "emoji" },
			wantErr: "unknown charset preset",
		},
		{
			name: "empty custom charset",
			mutate: func(c *Config) {
				c.Search.Charset = "custom"
				c.Search.CustomCharset = ""
			},
			wantErr: "alphabet is empty",
		},
		{
			name:    "zero min length",
			mutate:  func(c *Config) { c.Search.MinLength = 0 },
			wantErr: "search.min_length must be at least 1",
		},
		{
			name: "max below min",
			mutate: func(c *Config) {
				c.Search.MinLength = 5
				c.Search.MaxLength = 3
			},
			wantErr: "must not be less than search.min_length",
		},
		{
			name:    "max too long",
			mutate:  func(c *Config) { c.Search.MaxLength = MaxPasswordLength + 1 },
			wantErr: "search.max_length must not exceed",
		},
		{
			name:    "negative threads",
			mutate:  func(c *Config) { c.Search.Threads = -1 },
			wantErr: "search.threads must be 0",
		},
		{
			name:    "too many threads",
			mutate:  func(c *Config) { c.Search.Threads = MaxThreads + 1 },
			wantErr: "search.threads must not exceed",
		},
		{
			name:    "bad handle mode",
			mutate:  func(c *Config) { c.Search.HandleMode = "session" },
			wantErr: "search.handle_mode must be one of",
		},
		{
			name:    "missing output dir",
			mutate:  func(c *Config) { c.Output.Dir = "" },
			wantErr: "output.dir is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Config.Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Config.Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Config.Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := validConfig()
	if w := cfg.Warnings(); len(w) != 0 {
		t.Errorf("Warnings() = %v, want none", w)
	}

	cfg.Search.Charset = "custom"
	cfg.Search.CustomCharset = "abca"
	// Validation must stay silent; the caller reports warnings once
	for i := 0; i < 2; i++ {
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	}
	w := cfg.Warnings()
	if len(w) != 1 || !strings.Contains(w[0], "duplicate characters") {
		t.Errorf("Warnings() = %v, want one duplicate-characters warning", w)
	}

	cfg.Search.CustomCharset = "abc"
	if w := cfg.Warnings(); len(w) != 0 {
		t.Errorf("Warnings() = %v, want none for unique characters", w)
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)

	if cfg.Search.Charset != "lower" {
		t.Errorf("Charset = %q, want lower", cfg.Search.Charset)
	}
	if cfg.Search.MinLength != 1 || cfg.Search.MaxLength != 6 {
		t.Errorf("lengths = %d..%d, want 1..6", cfg.Search.MinLength, cfg.Search.MaxLength)
	}
	if cfg.Search.HandleMode != HandleModeAttempt {
		t.Errorf("HandleMode = %q, want %q", cfg.Search.HandleMode, HandleModeAttempt)
	}
	if cfg.Output.Dir != "output" {
		t.Errorf("Output.Dir = %q, want output", cfg.Output.Dir)
	}
	if !cfg.PreloadEnabled() || !cfg.WriteResultsEnabled() || !cfg.ProgressEnabled() {
		t.Error("boolean settings should default to true")
	}

	// A long min_length must not produce max < min
	cfg = Config{Search: SearchConfig{MinLength: 9}}
	applyDefaults(&cfg)
	if cfg.Search.MaxLength != 9 {
		t.Errorf("MaxLength = %d, want 9", cfg.Search.MaxLength)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zipcrack.toml")
	content := `
[search]
charset = "custom"
custom_charset = "abc123"
min_length = 2
max_length = 5
threads = 3
handle_mode = "worker"
preload = false

[output]
dir = "results"
progress = false

[metrics]
listen_addr = "127.0.0.1:9090"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	alphabet, err := cfg.Alphabet()
	if err != nil {
		t.Fatalf("Alphabet() error = %v", err)
	}
	if alphabet != "abc123" {
		t.Errorf("Alphabet() = %q, want abc123", alphabet)
	}
	if cfg.Search.MinLength != 2 || cfg.Search.MaxLength != 5 {
		t.Errorf("lengths = %d..%d, want 2..5", cfg.Search.MinLength, cfg.Search.MaxLength)
	}
	if cfg.ResolveThreads() != 3 {
		t.Errorf("ResolveThreads() = %d, want 3", cfg.ResolveThreads())
	}
	if cfg.Search.HandleMode != HandleModeWorker {
		t.Errorf("HandleMode = %q, want worker", cfg.Search.HandleMode)
	}
	if cfg.PreloadEnabled() {
		t.Error("PreloadEnabled() = true, want false")
	}
	if cfg.ProgressEnabled() {
		t.Error("ProgressEnabled() = true, want false")
	}
	if !cfg.WriteResultsEnabled() {
		t.Error("WriteResultsEnabled() = false, want default true")
	}
	if cfg.Output.Dir != "results" {
		t.Errorf("Output.Dir = %q, want results", cfg.Output.Dir)
	}
	if cfg.Metrics.ListenAddr != "127.0.0.1:9090" {
		t.Errorf("Metrics.ListenAddr = %q", cfg.Metrics.ListenAddr)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Load() of an explicit missing file should fail")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[search\ncharset = "), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("Load() error = %v, want parse error", err)
	}

	invalid := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(invalid, []byte("[search]\nmin_length = 4\nmax_length = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(invalid); err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Load() error = %v, want validation error", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zipcrack.toml")
	if err := os.WriteFile(path, []byte("[search]\ncharset = \"lower\"\nthreads = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvThreads, "7")
	t.Setenv(EnvCharset, "digits")
	t.Setenv(EnvMinLength, "3")
	t.Setenv(EnvMaxLength, "4")
	t.Setenv(EnvOutputDir, filepath.Join(dir, "out"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.Threads != 7 {
		t.Errorf("Threads = %d, want 7", cfg.Search.Threads)
	}
	if cfg.Search.Charset != "digits" {
		t.Errorf("Charset = %q, want digits", cfg.Search.Charset)
	}
	if cfg.Search.MinLength != 3 || cfg.Search.MaxLength != 4 {
		t.Errorf("lengths = %d..%d, want 3..4", cfg.Search.MinLength, cfg.Search.MaxLength)
	}
	if cfg.Output.Dir != filepath.Join(dir, "out") {
		t.Errorf("Output.Dir = %q", cfg.Output.Dir)
	}

	t.Setenv(EnvThreads, "many")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), EnvThreads) {
		t.Errorf("Load() error = %v, want %s parse error", err, EnvThreads)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()

	if err := LoadEnvFile(filepath.Join(dir, ".env")); err != nil {
		t.Errorf("LoadEnvFile() on a missing file = %v, want nil", err)
	}

	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("ZIPCRACK_TEST_ENV_FILE=from-file\n# comment\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ZIPCRACK_TEST_ENV_FILE", "")
	_ = os.Unsetenv("ZIPCRACK_TEST_ENV_FILE")

	if err := LoadEnvFile(envPath); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("ZIPCRACK_TEST_ENV_FILE"); got != "from-file" {
		t.Errorf("ZIPCRACK_TEST_ENV_FILE = %q, want from-file", got)
	}
}

func TestDetectThreads(t *testing.T) {
	n := DetectThreads()
	if n < 1 || n > MaxThreads {
		t.Errorf("DetectThreads() = %d, want 1..%d", n, MaxThreads)
	}

	cfg := validConfig()
	cfg.Search.Threads = 0
	if cfg.ResolveThreads() != n {
		t.Errorf("ResolveThreads() = %d, want detected %d", cfg.ResolveThreads(), n)
	}
}
