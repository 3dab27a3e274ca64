package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lamim/zipcrack/internal/archive"
	"github.com/lamim/zipcrack/internal/config"
	"github.com/lamim/zipcrack/internal/cracker"
	"github.com/lamim/zipcrack/pkg/models"
)

// ResultSink receives one record per finished entry attack
type ResultSink interface {
	WriteRecord(record models.ResultRecord) error
}

// Orchestrator attacks the entries of one archive in turn, skipping entries
// the session has already cracked
type Orchestrator struct {
	cfg     *config.Config
	archive archive.Archive
	session *cracker.Session
	params  cracker.Params
	results ResultSink
	logger  *slog.Logger

	mu       sync.Mutex
	finished []*cracker.Result
}

// New creates a new orchestrator. results may be nil.
func New(
	cfg *config.Config,
	a archive.Archive,
	session *cracker.Session,
	results ResultSink,
	logger *slog.Logger,
) (*Orchestrator, error) {
	alphabet, err := cfg.Alphabet()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve charset: %w", err)
	}

	params := cracker.Params{
		Alphabet:  alphabet,
		MinLength: cfg.Search.MinLength,
		MaxLength: cfg.Search.MaxLength,
		Threads:   cfg.ResolveThreads(),
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:     cfg,
		archive: a,
		session: session,
		params:  params,
		results: results,
		logger:  logger,
	}, nil
}

// Params returns the search parameters used for every entry
func (o *Orchestrator) Params() cracker.Params {
	return o.params
}

// Run attacks entryIDs in order, or every encrypted entry when entryIDs is
// empty. It stops early once every encrypted entry is cracked.
func (o *Orchestrator) Run(ctx context.Context, entryIDs []int) error {
	if len(entryIDs) == 0 {
		for _, e := range o.session.Remaining(o.archive) {
			entryIDs = append(entryIDs, e.ID)
		}
		if len(entryIDs) == 0 {
			o.logger.Warn("No encrypted entries to attack", "archive", o.archive.Path())
			return nil
		}
	}

	o.logger.Info("Starting cracking run",
		"archive", o.archive.Path(),
		"format", o.archive.Format(),
		"entries", len(entryIDs),
		"threads", o.params.Threads,
		"min_length", o.params.MinLength,
		"max_length", o.params.MaxLength)

	for _, id := range entryIDs {
		if o.session.IsCracked(id) {
			o.logger.Info("Skipping entry already cracked", "entry_id", id)
			continue
		}

		result, err := o.session.AttackNext(ctx, o.archive, id, o.params)
		if err != nil {
			switch {
			case errors.Is(err, cracker.ErrNotEncrypted):
				o.logger.Warn("Skipping entry without encryption", "entry_id", id)
				continue
			case errors.Is(err, archive.ErrUnsupportedCipher):
				o.logger.Warn("Skipping entry that cannot be verified", "entry_id", id, "error", err)
				continue
			case errors.Is(err, cracker.ErrAlreadyCracked):
				continue
			case ctx.Err() != nil:
				return ctx.Err()
			}
			return fmt.Errorf("attack on entry %d failed: %w", id, err)
		}

		o.record(result)

		if len(o.session.Remaining(o.archive)) == 0 {
			o.logger.Info("All encrypted entries have been cracked")
			break
		}
	}

	return nil
}

// record stores a finished attack and forwards it to the result sink
func (o *Orchestrator) record(result *cracker.Result) {
	o.mu.Lock()
	o.finished = append(o.finished, result)
	o.mu.Unlock()

	if o.results == nil {
		return
	}

	rec := models.ResultRecord{
		SessionID:  o.session.ID,
		Archive:    o.archive.Path(),
		EntryID:    result.Entry.ID,
		EntryName:  result.Entry.Name,
		Found:      result.Found,
		Password:   result.Password,
		Attempts:   result.Attempts,
		Charset:    o.cfg.Search.Charset,
		MinLength:  o.params.MinLength,
		MaxLength:  o.params.MaxLength,
		Threads:    o.params.Threads,
		Duration:   result.Duration,
		FinishedAt: time.Now(),
	}
	if err := o.results.WriteRecord(rec); err != nil {
		// The password is already logged; a lost report line is not fatal
		o.logger.Error("Failed to write result", "entry_id", rec.EntryID, "error", err)
	}
}

// Results returns the finished attacks in the order they ran
func (o *Orchestrator) Results() []*cracker.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*cracker.Result(nil), o.finished...)
}

// GetStats returns the current session statistics
func (o *Orchestrator) GetStats() models.SessionStats {
	return o.session.Stats()
}
