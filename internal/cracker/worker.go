package cracker

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/lamim/zipcrack/internal/archive"
	"github.com/lamim/zipcrack/internal/charset"
	"github.com/lamim/zipcrack/pkg/models"
)

const (
	// progressBatch is how many rejected candidates a worker accumulates
	// before touching the shared progress bar and metrics
	progressBatch = 256
	// sampleEvery is the candidate stride at which worker 0 offers a debug sample
	sampleEvery = 100
)

// Range is a half-open index interval [Start, End)
type Range struct {
	Start uint64
	End   uint64
}

// Len returns the number of indices in the range
func (r Range) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Partition splits [0, total) into n contiguous ranges of total/n indices.
// The last range absorbs the remainder. Ranges may be empty when n > total.
func Partition(total uint64, n int) []Range {
	if n <= 0 {
		return nil
	}
	chunk := total / uint64(n)
	ranges := make([]Range, n)
	for i := 0; i < n; i++ {
		start := uint64(i) * chunk
		end := start + chunk
		if i == n-1 {
			end = total
		}
		ranges[i] = Range{Start: start, End: end}
	}
	return ranges
}

// scan tests every index in r until the range ends, the outcome is claimed,
// or ctx is cancelled.
func (c *Coordinator) scan(ctx context.Context, workerID int, a archive.Archive, entry models.Entry, alphabet charset.Alphabet, length int, r Range, outcome *Outcome, progress *tierProgress) error {
	c.metrics.WorkerStarted()
	defer c.metrics.WorkerStopped()

	workerLogger := c.logger.With("worker_id", workerID, "length", length)
	workerLogger.Debug("Worker started", "start", r.Start, "end", r.End)

	var h archive.Handle
	if c.opts.HandleMode == HandlePerWorker {
		var err error
		h, err = a.NewHandle()
		if err != nil {
			return fmt.Errorf("worker %d: failed to open archive handle: %w", workerID, err)
		}
		defer h.Close()
	}

	var pending uint64
	flush := func() {
		c.metrics.AddRejected(pending)
		progress.Add(pending)
		pending = 0
	}
	defer flush()

	for i := r.Start; i < r.End; i++ {
		if outcome.Done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		password := charset.Encode(i, alphabet, length)
		if workerID == 0 && (i-r.Start)%sampleEvery == 0 {
			c.sampler.Do(func() {
				workerLogger.Debug("Testing candidate", "index", i, "password", password)
			})
		}

		var ok bool
		var err error
		if h != nil {
			ok, err = c.validator.Validate(h, entry, password)
		} else {
			ok, err = c.validator.validateWithNewHandle(a, entry, password)
		}
		if err != nil {
			return fmt.Errorf("worker %d: candidate %d: %w", workerID, i, err)
		}

		if ok {
			if outcome.Claim(password) {
				c.metrics.IncAccepted()
				workerLogger.Info("Candidate accepted", "index", i)
			} else {
				workerLogger.Debug("Candidate accepted after another worker claimed the result", "index", i)
			}
			return nil
		}

		outcome.AddAttempts(1)
		pending++
		if pending >= progressBatch {
			flush()
		}
	}

	workerLogger.Debug("Worker finished range", "start", r.Start, "end", r.End)
	return nil
}

// tierProgress is a progress bar for one length tier. A nil *tierProgress
// draws nothing.
type tierProgress struct {
	bar *progressbar.ProgressBar
}

func (c *Coordinator) newTierProgress(total uint64, length int) *tierProgress {
	if !c.opts.Progress {
		return nil
	}
	limit := int64(-1) // spinner when the tier does not fit in int64
	if total <= math.MaxInt64 {
		limit = int64(total)
	}
	return &tierProgress{bar: newBar(c.opts.ProgressWriter, limit, fmt.Sprintf("length %d", length))}
}

func newBar(w io.Writer, limit int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(limit,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("pw"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// Add advances the bar by n candidates
func (p *tierProgress) Add(n uint64) {
	if p == nil || n == 0 {
		return
	}
	_ = p.bar.Add64(int64(n))
}

// Finish completes the bar
func (p *tierProgress) Finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}
