package config

import (
	"fmt"
	"net"
	"strings"
	"unicode"
)

const (
	// MaxCustomCharsetLength is the maximum number of custom charset characters
	MaxCustomCharsetLength = 256

	// MaxOutputDirLength is the maximum allowed length of output.dir
	MaxOutputDirLength = 4096
)

// ValidateInputs performs additional validation on user-controllable fields.
// Candidates are built byte by byte, so the custom charset must be printable ASCII.
func (c *Config) ValidateInputs() error {
	if strings.EqualFold(c.Search.Charset, "custom") {
		if err := validateCustomCharset(c.Search.CustomCharset); err != nil {
			return fmt.Errorf("invalid custom_charset: %w", err)
		}
	}

	if err := validateOutputDir(c.Output.Dir); err != nil {
		return fmt.Errorf("invalid output.dir: %w", err)
	}

	if c.Metrics.ListenAddr != "" {
		if err := validateListenAddr(c.Metrics.ListenAddr); err != nil {
			return fmt.Errorf("invalid metrics.listen_addr: %w", err)
		}
	}

	return nil
}

// validateCustomCharset checks a custom alphabet is non-empty printable ASCII
func validateCustomCharset(chars string) error {
	if chars == "" {
		return fmt.Errorf("must not be empty")
	}
	if len(chars) > MaxCustomCharsetLength {
		return fmt.Errorf("exceeds maximum length of %d characters (got %d)",
			MaxCustomCharsetLength, len(chars))
	}
	for i, r := range chars {
		if r > unicode.MaxASCII {
			return fmt.Errorf("contains non-ASCII character %q at offset %d", r, i)
		}
		if !unicode.IsPrint(r) {
			return fmt.Errorf("contains non-printable character %q at offset %d", r, i)
		}
	}
	return nil
}

// validateOutputDir checks the output directory path for obvious problems
func validateOutputDir(dir string) error {
	if len(dir) > MaxOutputDirLength {
		return fmt.Errorf("exceeds maximum length of %d characters (got %d)",
			MaxOutputDirLength, len(dir))
	}
	if containsControlChars(dir) {
		return fmt.Errorf("contains invalid control characters")
	}
	return nil
}

// validateListenAddr checks a host:port listen address
func validateListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

// containsControlChars checks if a string contains control characters
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
