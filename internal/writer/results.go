package writer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lamim/zipcrack/pkg/models"
)

// ResultsFileName is the per-session results file
const ResultsFileName = "results.jsonl"

// ResultsWriter appends one JSON line per finished entry attack
type ResultsWriter struct {
	file   *os.File
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewResultsWriter creates the results file of a session
func NewResultsWriter(sessionMgr *SessionManager, logger *slog.Logger) (*ResultsWriter, error) {
	resultsPath := sessionMgr.GetResultsPath()

	file, err := os.OpenFile(resultsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create results file: %w", err)
	}

	logger.Info("Created results file", "path", resultsPath)

	return &ResultsWriter{
		file:   file,
		logger: logger,
	}, nil
}

// WriteRecord writes a single result line
func (rw *ResultsWriter) WriteRecord(record models.ResultRecord) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if _, err := rw.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	rw.count++

	return nil
}

// Count returns the number of records written
func (rw *ResultsWriter) Count() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.count
}

// Close closes the results file
func (rw *ResultsWriter) Close() error {
	if err := rw.file.Sync(); err != nil {
		rw.logger.Warn("Failed to sync results file", "error", err)
	}

	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("failed to close results file: %w", err)
	}

	rw.logger.Debug("Closed results file", "records", rw.count)
	return nil
}

// ReadResults loads every record of a results file. Blank lines are skipped.
func ReadResults(path string) ([]models.ResultRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer file.Close()

	var records []models.ResultRecord
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var record models.ResultRecord
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("failed to parse results line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	return records, nil
}

// SessionSummary describes one session directory for listing
type SessionSummary struct {
	Name      string
	StartedAt time.Time
	Attacks   int
	Cracked   int
	Attempts  uint64
}

// ListSessions summarises the session directories under outputDir, newest first
func ListSessions(outputDir string) ([]SessionSummary, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var sessions []SessionSummary
	for _, entry := range entries {
		if !entry.IsDir() || !sessionNameRegex.MatchString(entry.Name()) {
			continue
		}

		summary := SessionSummary{Name: entry.Name()}
		if ts, err := time.ParseInLocation(SessionTimeFormat, strings.TrimPrefix(entry.Name(), "session_"), time.Local); err == nil {
			summary.StartedAt = ts
		}

		// Sessions without a results file still show up, with zero counts
		records, err := ReadResults(filepath.Join(outputDir, entry.Name(), ResultsFileName))
		if err == nil {
			for _, r := range records {
				summary.Attacks++
				summary.Attempts += r.Attempts
				if r.Found {
					summary.Cracked++
				}
			}
		}
		sessions = append(sessions, summary)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Name > sessions[j].Name
	})
	return sessions, nil
}
