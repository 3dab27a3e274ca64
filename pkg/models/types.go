package models

import "time"

// Entry describes one item stored in an archive, captured once from the
// archive metadata. None of these fields depend on the password.
type Entry struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Size      uint64 `json:"size"`      // Uncompressed size in bytes
	CRC32     uint32 `json:"crc32"`     // Stored CRC-32 (IEEE) of the uncompressed content
	HasCRC    bool   `json:"has_crc"`   // False when the format stores no usable CRC (WinZip AE-2)
	Encrypted bool   `json:"encrypted"` // Entry requires a password
	IsDir     bool   `json:"is_dir"`    // Directory entries carry no content
	Method    string `json:"method"`    // Compression/encryption method, for display only

	// Authenticated is set when the reader verifies a MAC at end of stream,
	// which stands in for a missing CRC.
	Authenticated bool `json:"authenticated"`
}

// AttackState is the lifecycle state of a cracking session
type AttackState string

const (
	// StateIdle means no attack has run yet
	StateIdle AttackState = "idle"
	// StateAttacking means a search is in progress
	StateAttacking AttackState = "attacking"
	// StateSolved means the last attacked entry was cracked
	StateSolved AttackState = "solved"
	// StateExhausted means the last search ran out of candidates
	StateExhausted AttackState = "exhausted"
)

// ResultRecord is a single line of a session's results.jsonl
type ResultRecord struct {
	SessionID  string        `json:"session_id"`
	Archive    string        `json:"archive"`
	EntryID    int           `json:"entry_id"`
	EntryName  string        `json:"entry_name"`
	Found      bool          `json:"found"`
	Password   string        `json:"password,omitempty"`
	Attempts   uint64        `json:"attempts"`
	Charset    string        `json:"charset"`
	MinLength  int           `json:"min_length"`
	MaxLength  int           `json:"max_length"`
	Threads    int           `json:"threads"`
	Duration   time.Duration `json:"duration_ns"`
	FinishedAt time.Time     `json:"finished_at"`
}

// SessionStats tracks statistics for a cracking session
type SessionStats struct {
	StartTime      time.Time
	EndTime        time.Time
	EntriesTried   int
	CrackedCount   int
	ExhaustedCount int
	TotalAttempts  uint64
	TotalDuration  time.Duration
}
