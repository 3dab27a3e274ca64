package cracker

import "errors"

var (
	// ErrInvalidConfig wraps every configuration error detected before a search starts
	ErrInvalidConfig = errors.New("invalid search configuration")
	// ErrInvalidThreads is returned for a non-positive worker count
	ErrInvalidThreads = errors.New("thread count must be positive")
	// ErrInvalidLength is returned for min_length < 1 or max_length < min_length
	ErrInvalidLength = errors.New("invalid password length range")
	// ErrNotEncrypted is returned when the target entry has no password to recover
	ErrNotEncrypted = errors.New("entry is not encrypted")

	// ErrAlreadyCracked is returned when a session re-targets a solved entry
	ErrAlreadyCracked = errors.New("entry already cracked in this session")
	// ErrSessionBusy is returned when a session is asked to attack while attacking
	ErrSessionBusy = errors.New("session is already attacking an entry")
)
