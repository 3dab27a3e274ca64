package cracker

import (
	"sync"
	"sync/atomic"
)

// Outcome is the shared, write-once result of one entry attack. Workers
// share a pointer to it; it doubles as the cancellation flag.
type Outcome struct {
	mu       sync.Mutex
	password string
	found    atomic.Bool

	attempts atomic.Uint64
}

// NewOutcome returns an unset outcome
func NewOutcome() *Outcome {
	return &Outcome{}
}

// Claim records password if no other worker has. It returns true only for
// the single caller that made the unset->set transition.
func (o *Outcome) Claim(password string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.found.Load() {
		return false
	}
	o.password = password
	o.found.Store(true)
	return true
}

// Done reports whether a password has been claimed. Workers poll it once
// per candidate.
func (o *Outcome) Done() bool {
	return o.found.Load()
}

// Password returns the claimed password, if any
func (o *Outcome) Password() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.password, o.found.Load()
}

// AddAttempts adds n rejected candidates to the diagnostic counter
func (o *Outcome) AddAttempts(n uint64) {
	o.attempts.Add(n)
}

// Attempts returns the number of rejected candidates so far
func (o *Outcome) Attempts() uint64 {
	return o.attempts.Load()
}
