package cracker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamim/zipcrack/internal/archive"
	"github.com/lamim/zipcrack/internal/archive/archivetest"
	"github.com/lamim/zipcrack/pkg/models"
)

var sessionParams = Params{Alphabet: "abc", MinLength: 1, MaxLength: 2, Threads: 2}

func TestSessionAttackNext(t *testing.T) {
	fake := archivetest.NewFake()
	first := fake.AddEntry("one.txt", []byte("first entry"), "bc")
	second := fake.AddEntry("two.txt", []byte("second entry"), "zzz")

	s := NewSession(newTestCoordinator(HandlePerAttempt), testLogger())
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, models.StateIdle, s.State())

	res, err := s.AttackNext(context.Background(), fake, first, sessionParams)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, models.StateSolved, s.State())
	assert.True(t, s.IsCracked(first))
	pw, ok := s.Password(first)
	assert.True(t, ok)
	assert.Equal(t, "bc", pw)

	res, err = s.AttackNext(context.Background(), fake, second, sessionParams)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, models.StateExhausted, s.State())
	assert.False(t, s.IsCracked(second))

	assert.Equal(t, []int{first}, s.Cracked())

	stats := s.Stats()
	assert.Equal(t, 2, stats.EntriesTried)
	assert.Equal(t, 1, stats.CrackedCount)
	assert.Equal(t, 1, stats.ExhaustedCount)
	assert.Equal(t, uint64(3+9), res.Attempts)
	assert.GreaterOrEqual(t, stats.TotalAttempts, uint64(3+9))
}

func TestSessionRefusesCrackedEntry(t *testing.T) {
	fake := archivetest.NewFake()
	id := fake.AddEntry("one.txt", []byte("first entry"), "a")

	s := NewSession(newTestCoordinator(HandlePerAttempt), testLogger())
	_, err := s.AttackNext(context.Background(), fake, id, sessionParams)
	require.NoError(t, err)
	handles := fake.Handles()

	res, err := s.AttackNext(context.Background(), fake, id, sessionParams)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrAlreadyCracked)
	assert.Equal(t, handles, fake.Handles(), "no work for a cracked entry")
}

func TestSessionMarkCracked(t *testing.T) {
	fake := archivetest.NewFake()
	id := fake.AddEntry("one.txt", []byte("first entry"), "a")

	s := NewSession(newTestCoordinator(HandlePerAttempt), testLogger())
	s.MarkCracked(id, "a")
	s.MarkCracked(id, "a")

	_, err := s.AttackNext(context.Background(), fake, id, sessionParams)
	assert.ErrorIs(t, err, ErrAlreadyCracked)
	assert.Zero(t, fake.Handles())
	assert.Equal(t, 1, s.Stats().CrackedCount)
}

func TestSessionBusy(t *testing.T) {
	fake := archivetest.NewFake()
	id := fake.AddEntry("one.txt", []byte("first entry"), "a")

	s := NewSession(newTestCoordinator(HandlePerAttempt), testLogger())
	s.mu.Lock()
	s.state = models.StateAttacking
	s.current = 3
	s.mu.Unlock()

	_, err := s.AttackNext(context.Background(), fake, id, sessionParams)
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.Zero(t, fake.Handles())
}

func TestSessionErrorReturnsToIdle(t *testing.T) {
	fake := archivetest.NewFake()
	id := fake.AddEntry("one.txt", []byte("first entry"), "a")
	s := NewSession(newTestCoordinator(HandlePerAttempt), testLogger())

	_, err := s.AttackNext(context.Background(), fake, id, Params{Alphabet: "abc", MinLength: 1, MaxLength: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, models.StateIdle, s.State())

	_, err = s.AttackNext(context.Background(), fake, 42, sessionParams)
	assert.ErrorIs(t, err, archive.ErrNoSuchEntry)
	assert.Equal(t, models.StateIdle, s.State())
}

func TestSessionRemaining(t *testing.T) {
	fake := archivetest.NewFake()
	a := fake.AddEntry("a.txt", []byte("aaaa"), "a")
	b := fake.AddEntry("b.txt", []byte("bbbb"), "b")

	s := NewSession(newTestCoordinator(HandlePerAttempt), testLogger())
	assert.Len(t, s.Remaining(fake), 2)

	s.MarkCracked(a, "a")
	remaining := s.Remaining(fake)
	require.Len(t, remaining, 1)
	assert.Equal(t, b, remaining[0].ID)
}

func TestSessionConcurrentAttackNext(t *testing.T) {
	fake := archivetest.NewFake()
	id := fake.AddEntry("one.txt", []byte("first entry"), "cc")
	s := NewSession(newTestCoordinator(HandlePerAttempt), testLogger())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.AttackNext(context.Background(), fake, id, sessionParams)
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrSessionBusy) || errors.Is(err, ErrAlreadyCracked), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok, "exactly one attack runs for the entry")
	assert.True(t, s.IsCracked(id))
}
