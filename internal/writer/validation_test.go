package writer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateSessionPath_SessionManagerNames(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "runs")
	sm, err := NewSessionManager(testLogger(), outputDir)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}

	if err := ValidateSessionPath(outputDir, sm.GetSessionName()); err != nil {
		t.Errorf("ValidateSessionPath(%q) rejected a generated session name: %v", sm.GetSessionName(), err)
	}

	// Every timestamp layout produced by SessionTimeFormat must be accepted
	for _, ts := range []time.Time{
		time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC),
	} {
		name := "session_" + ts.Format(SessionTimeFormat)
		if err := ValidateSessionPath(outputDir, name); err != nil {
			t.Errorf("ValidateSessionPath(%q) error = %v", name, err)
		}
	}
}

func TestValidateSessionPath_OutputDirs(t *testing.T) {
	name := "session_2025-10-30T14-30-00"
	for _, outputDir := range []string{
		"output",
		"./results/zip",
		"",
		t.TempDir(),
	} {
		t.Run(outputDir, func(t *testing.T) {
			if err := ValidateSessionPath(outputDir, name); err != nil {
				t.Errorf("ValidateSessionPath(%q, %q) error = %v", outputDir, name, err)
			}
		})
	}
}

func TestValidateSessionPath_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // substring of expected error message
	}{
		{"empty", "", "cannot be empty"},
		{"parent_of_session", "../session_2025-10-30T14-30-00", "path traversal"},
		{"nested_escape", "session_2025-10-30T14-30-00/../../etc", "path traversal"},
		{"absolute", "/tmp/session_2025-10-30T14-30-00", "must be relative"},
		{"results_file", "session_2025-10-30T14-30-00/results.jsonl", "path separators"},
		{"windows_separator", "session_2025-10-30T14-30-00\\x", "path separators"},
		{"date_only", "session_2025-10-30", "invalid session name format"},
		{"colon_time", "session_2025-10-30T14:30:00", "invalid session name format"},
		{"missing_prefix", "2025-10-30T14-30-00", "invalid session name format"},
		{"log_name", "session.log", "invalid session name format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionPath("output", tt.input)
			if err == nil {
				t.Fatalf("ValidateSessionPath(%q) expected error, got nil", tt.input)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ValidateSessionPath(%q) error = %v, want substring %q", tt.input, err, tt.want)
			}
		})
	}
}

func TestResolveSessionDir(t *testing.T) {
	outputDir := t.TempDir()
	sm, err := NewSessionManager(testLogger(), outputDir)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}

	dir, err := ResolveSessionDir(outputDir, sm.GetSessionName())
	if err != nil {
		t.Fatalf("ResolveSessionDir() error = %v", err)
	}
	if dir != sm.GetSessionDir() {
		t.Errorf("ResolveSessionDir() = %q, want %q", dir, sm.GetSessionDir())
	}

	missing := "session_2001-01-01T00-00-00"
	if _, err := ResolveSessionDir(outputDir, missing); err == nil || !strings.Contains(err.Error(), "session not found") {
		t.Errorf("ResolveSessionDir(%q) error = %v, want session not found", missing, err)
	}

	// A regular file with a session-shaped name is not a session
	file := "session_2002-02-02T02-02-02"
	if err := os.WriteFile(filepath.Join(outputDir, file), []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveSessionDir(outputDir, file); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("ResolveSessionDir(%q) error = %v, want not a directory", file, err)
	}

	// Names are validated before the filesystem is touched
	if _, err := ResolveSessionDir(outputDir, "../etc"); err == nil || !strings.Contains(err.Error(), "path traversal") {
		t.Errorf("ResolveSessionDir(../etc) error = %v, want traversal error", err)
	}
}
