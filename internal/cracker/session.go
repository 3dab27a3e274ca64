package cracker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/zipcrack/internal/archive"
	"github.com/lamim/zipcrack/pkg/models"
)

// Session tracks which entries of one archive have been cracked and refuses
// to attack an entry twice. Only one attack runs per session at a time.
type Session struct {
	ID string

	coordinator *Coordinator
	logger      *slog.Logger

	mu      sync.Mutex
	state   models.AttackState
	current int
	cracked map[int]string
	stats   models.SessionStats
}

// NewSession creates an idle session driven by coordinator
func NewSession(coordinator *Coordinator, logger *slog.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		ID:          id,
		coordinator: coordinator,
		logger:      logger.With("session_id", id),
		state:       models.StateIdle,
		current:     -1,
		cracked:     make(map[int]string),
		stats: models.SessionStats{
			StartTime: time.Now(),
		},
	}
}

// AttackNext attacks one entry of a. A found password marks the entry
// cracked. The session returns to idle if the attack errors.
func (s *Session) AttackNext(ctx context.Context, a archive.Archive, entryID int, p Params) (*Result, error) {
	s.mu.Lock()
	if s.state == models.StateAttacking {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: entry %d in progress", ErrSessionBusy, s.current)
	}
	if _, ok := s.cracked[entryID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: entry %d", ErrAlreadyCracked, entryID)
	}
	entry, err := a.Stat(entryID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state = models.StateAttacking
	s.current = entryID
	s.stats.EntriesTried++
	s.mu.Unlock()

	s.logger.Info("Attacking entry", "entry_id", entryID, "entry", entry.Name)
	result, err := s.coordinator.Attack(ctx, a, entry, p)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = -1
	if result != nil {
		s.stats.TotalAttempts += result.Attempts
		s.stats.TotalDuration += result.Duration
	}
	if err != nil {
		s.state = models.StateIdle
		return result, err
	}

	if result.Found {
		s.cracked[entryID] = result.Password
		s.stats.CrackedCount++
		s.state = models.StateSolved
	} else {
		s.stats.ExhaustedCount++
		s.state = models.StateExhausted
	}
	return result, nil
}

// MarkCracked records entryID as cracked without attacking it
func (s *Session) MarkCracked(entryID int, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cracked[entryID]; !ok {
		s.stats.CrackedCount++
	}
	s.cracked[entryID] = password
}

// IsCracked reports whether entryID has been cracked in this session
func (s *Session) IsCracked(entryID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cracked[entryID]
	return ok
}

// Password returns the recovered password of a cracked entry
func (s *Session) Password(entryID int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pw, ok := s.cracked[entryID]
	return pw, ok
}

// Cracked returns the cracked entry IDs in ascending order
func (s *Session) Cracked() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.cracked))
	for id := range s.cracked {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Remaining returns the encrypted, uncracked entries of a
func (s *Session) Remaining(a archive.Archive) []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Entry
	for _, e := range a.Entries() {
		if !e.Encrypted || e.IsDir {
			continue
		}
		if _, ok := s.cracked[e.ID]; ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// State returns the attack state of the most recent attack
func (s *Session) State() models.AttackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the session statistics
func (s *Session) Stats() models.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.EndTime = time.Now()
	return stats
}
