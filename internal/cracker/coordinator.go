package cracker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lamim/zipcrack/internal/archive"
	"github.com/lamim/zipcrack/internal/charset"
	"github.com/lamim/zipcrack/internal/metrics"
	"github.com/lamim/zipcrack/pkg/models"
)

// HandleMode selects how workers obtain archive handles
type HandleMode string

const (
	// HandlePerAttempt opens a fresh handle for every candidate
	HandlePerAttempt HandleMode = "attempt"
	// HandlePerWorker opens one handle per worker and reuses it across its range
	HandlePerWorker HandleMode = "worker"
)

// Params are the search bounds of one entry attack. They are fixed for the
// whole attack.
type Params struct {
	Alphabet  charset.Alphabet
	MinLength int
	MaxLength int
	Threads   int
}

// Validate rejects configurations before any worker is spawned
func (p Params) Validate() error {
	if err := p.Alphabet.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if p.Threads <= 0 {
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidConfig, ErrInvalidThreads, p.Threads)
	}
	if p.MinLength < 1 {
		return fmt.Errorf("%w: %w: min_length must be at least 1 (got %d)", ErrInvalidConfig, ErrInvalidLength, p.MinLength)
	}
	if p.MaxLength < p.MinLength {
		return fmt.Errorf("%w: %w: max_length (%d) < min_length (%d)", ErrInvalidConfig, ErrInvalidLength, p.MaxLength, p.MinLength)
	}
	if _, err := charset.TotalSpace(p.Alphabet.Base(), p.MinLength, p.MaxLength); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Result is the terminal state of one entry attack
type Result struct {
	Entry    models.Entry
	Found    bool
	Password string
	// Attempts counts rejected candidates. When nothing is found it equals
	// Space.
	Attempts uint64
	// Space is the number of candidates between MinLength and MaxLength
	Space    uint64
	Lengths  int // length tiers searched
	Duration time.Duration
}

// Options configures a Coordinator
type Options struct {
	HandleMode     HandleMode
	Progress       bool      // draw a progress bar per length tier
	ProgressWriter io.Writer // defaults to os.Stderr
}

// Coordinator runs entry attacks: one length tier at a time, each tier
// split across Params.Threads workers.
type Coordinator struct {
	validator Validator
	opts      Options
	metrics   *metrics.Collector
	logger    *slog.Logger
	sampler   *rate.Sometimes
}

// New creates a new coordinator. collector may be nil.
func New(opts Options, collector *metrics.Collector, logger *slog.Logger) *Coordinator {
	if opts.HandleMode == "" {
		opts.HandleMode = HandlePerAttempt
	}
	if opts.ProgressWriter == nil {
		opts.ProgressWriter = os.Stderr
	}
	return &Coordinator{
		opts:    opts,
		metrics: collector,
		logger:  logger,
		sampler: &rate.Sometimes{Interval: 2 * time.Second},
	}
}

// Attack searches entry for its password, shortest candidates first.
// Configuration errors are returned before any worker starts. If ctx is
// cancelled the partial result is returned together with ctx.Err().
func (c *Coordinator) Attack(ctx context.Context, a archive.Archive, entry models.Entry, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		c.metrics.RecordAttack("error")
		return nil, err
	}
	if !entry.Encrypted || entry.IsDir {
		c.metrics.RecordAttack("error")
		return nil, fmt.Errorf("%w: entry %d (%s)", ErrNotEncrypted, entry.ID, entry.Name)
	}
	if !entry.HasCRC && !entry.Authenticated {
		c.metrics.RecordAttack("error")
		return nil, fmt.Errorf("%w: entry %d (%s) stores no checksum to verify candidates against",
			archive.ErrUnsupportedCipher, entry.ID, entry.Name)
	}

	space, _ := charset.TotalSpace(p.Alphabet.Base(), p.MinLength, p.MaxLength)
	result := &Result{Entry: entry, Space: space}
	outcome := NewOutcome()
	start := time.Now()

	c.logger.Info("Starting attack",
		"entry_id", entry.ID,
		"entry", entry.Name,
		"charset_size", p.Alphabet.Base(),
		"min_length", p.MinLength,
		"max_length", p.MaxLength,
		"threads", p.Threads,
		"handle_mode", c.opts.HandleMode,
		"candidates", space)

	for length := p.MinLength; length <= p.MaxLength; length++ {
		tierStart := time.Now()
		err := c.searchTier(ctx, a, entry, p, length, outcome)
		result.Lengths++
		result.Attempts = outcome.Attempts()
		result.Duration = time.Since(start)
		c.metrics.RecordTier(strconv.Itoa(length), time.Since(tierStart))

		if err != nil {
			// A sibling may have claimed the password before another failed
			if password, ok := outcome.Password(); ok {
				c.logger.Warn("Worker failed after the password was found",
					"entry", entry.Name,
					"length", length,
					"error", err)
				result.Found = true
				result.Password = password
				break
			}
			if ctx.Err() != nil {
				c.logger.Warn("Attack interrupted",
					"entry", entry.Name,
					"length", length,
					"attempts", result.Attempts)
				return result, ctx.Err()
			}
			c.metrics.RecordAttack("error")
			return nil, fmt.Errorf("search failed at length %d: %w", length, err)
		}

		if password, ok := outcome.Password(); ok {
			result.Found = true
			result.Password = password
			break
		}

		c.logger.Debug("Length exhausted",
			"entry", entry.Name,
			"length", length,
			"attempts", result.Attempts,
			"tier_duration", time.Since(tierStart))
	}

	if result.Found {
		c.metrics.RecordAttack("found")
		c.logger.Info("Password found",
			"entry", entry.Name,
			"attempts", result.Attempts,
			"duration", result.Duration)
	} else {
		c.metrics.RecordAttack("exhausted")
		c.logger.Info("Password not found",
			"entry", entry.Name,
			"attempts", result.Attempts,
			"duration", result.Duration)
	}

	return result, nil
}

// AttackPath opens the archive at path and attacks one of its entries
func (c *Coordinator) AttackPath(ctx context.Context, path string, entryID int, p Params, opts ...archive.Option) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	a, err := archive.Open(path, append([]archive.Option{archive.WithLogger(c.logger)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("could not read archive: %w", err)
	}
	defer a.Close()

	entry, err := a.Stat(entryID)
	if err != nil {
		return nil, fmt.Errorf("could not read archive: %w", err)
	}
	return c.Attack(ctx, a, entry, p)
}

// searchTier scans every candidate of one length. It returns once a worker
// claims the outcome or all ranges are exhausted.
func (c *Coordinator) searchTier(ctx context.Context, a archive.Archive, entry models.Entry, p Params, length int, outcome *Outcome) error {
	total, err := charset.Space(p.Alphabet.Base(), length)
	if err != nil {
		return err
	}

	progress := c.newTierProgress(total, length)
	defer progress.Finish()

	g, gctx := errgroup.WithContext(ctx)
	for workerID, r := range Partition(total, p.Threads) {
		if r.Len() == 0 {
			continue
		}
		g.Go(func() error {
			return c.scan(gctx, workerID, a, entry, p.Alphabet, length, r, outcome, progress)
		})
	}
	return g.Wait()
}
