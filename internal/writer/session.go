package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SessionTimeFormat is the timestamp layout of session directory names
const SessionTimeFormat = "2006-01-02T15-04-05"

// SessionManager manages session directories and files
type SessionManager struct {
	outputDir  string
	sessionDir string
	logger     *slog.Logger
}

// NewSessionManager creates a timestamped session directory under outputDir
func NewSessionManager(logger *slog.Logger, outputDir string) (*SessionManager, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format(SessionTimeFormat)
	sessionDir := filepath.Join(outputDir, "session_"+timestamp)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	logger.Info("Created new session directory", "path", sessionDir)

	return &SessionManager{
		outputDir:  outputDir,
		sessionDir: sessionDir,
		logger:     logger,
	}, nil
}

// SetLogger replaces the logger once the session log is open
func (sm *SessionManager) SetLogger(logger *slog.Logger) {
	sm.logger = logger
}

// GetSessionDir returns the session directory path
func (sm *SessionManager) GetSessionDir() string {
	return sm.sessionDir
}

// GetSessionName returns the session directory name
func (sm *SessionManager) GetSessionName() string {
	return filepath.Base(sm.sessionDir)
}

// GetResultsPath returns the full path to the results file
func (sm *SessionManager) GetResultsPath() string {
	return filepath.Join(sm.sessionDir, ResultsFileName)
}

// GetLogPath returns the full path to the session log file
func (sm *SessionManager) GetLogPath() string {
	return filepath.Join(sm.sessionDir, "session.log")
}

// GetConfigBackupPath returns the full path to the config backup
func (sm *SessionManager) GetConfigBackupPath() string {
	return filepath.Join(sm.sessionDir, "config.toml.bak")
}

// BackupConfig copies the config file to the session directory
func (sm *SessionManager) BackupConfig(configPath string) error {
	source, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	backupPath := sm.GetConfigBackupPath()
	if err := os.WriteFile(backupPath, source, 0644); err != nil {
		return fmt.Errorf("failed to write config backup: %w", err)
	}

	sm.logger.Info("Backed up config file", "path", backupPath)
	return nil
}
