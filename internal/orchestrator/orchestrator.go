// Package orchestrator drives the extraction engine across large note
// sets in fixed-size batches, with incremental idempotent persistence
// and per-batch progress reporting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/carelens/notescan/internal/domain/mention"
	"github.com/carelens/notescan/internal/domain/note"
	"github.com/carelens/notescan/internal/domain/status"
	"github.com/carelens/notescan/internal/extract"
	"github.com/carelens/notescan/pkg/metrics"
)

const DefaultBatchSize = 400

// RunContext owns cancellation for a single orchestrator run.
// Each run gets its own instead of sharing process-wide flags, so
// concurrent runs cannot interfere with each other.
type RunContext struct {
	cancelled atomic.Bool
}

func NewRunContext() *RunContext {
	return &RunContext{}
}

// Cancel requests a stop. The orchestrator checks between batches;
// the in-flight batch always completes, batch granularity is the
// atomic unit.
func (rc *RunContext) Cancel() {
	rc.cancelled.Store(true)
}

func (rc *RunContext) Cancelled() bool {
	return rc.cancelled.Load()
}

// Options configures one run.
type Options struct {
	UserID   string
	TaskType string
	// BatchSize defaults to DefaultBatchSize when unset.
	BatchSize int
	// MinNoteLength is the shortest note text worth scanning.
	MinNoteLength int
	// OnProgress, if set, receives an immutable snapshot after every
	// persisted batch.
	OnProgress func(status.Snapshot)
}

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
)

// Result summarizes one run.
type Result struct {
	Outcome           Outcome
	ProcessedNotes    int
	SkippedNotes      int
	ExtractedMentions int
	Duration          time.Duration
}

type Orchestrator struct {
	engine   *extract.Engine
	mentions mention.Repository
	statuses status.Repository
	metrics  *metrics.Collector
	log      *zap.Logger
}

func New(engine *extract.Engine, mentions mention.Repository, statuses status.Repository, collector *metrics.Collector, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		mentions: mentions,
		statuses: statuses,
		metrics:  collector,
		log:      log,
	}
}

// Run partitions notes into consecutive batches and, per batch:
// extracts, persists, updates the status row, and reports progress.
// Peak memory is bounded to one batch of mentions; the batch slice is
// released once persisted.
//
// Persistence is idempotent on the mention natural key, so a rerun
// after a partial run (crash, stall reset, stop) is safe and never
// double-counts. Per-note problems are logged and skipped; a batch
// persistence failure marks the status failed and aborts the run.
//
// Run returns a non-nil Result on every path. It refuses to start
// while another run holds the status row in_progress.
func (o *Orchestrator) Run(ctx context.Context, rc *RunContext, notes []*note.Record, opts Options) (*Result, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	start := time.Now()
	total := len(notes)
	res := &Result{}

	// A run may only claim the status row when the state machine allows
	// in_progress from its current state. A live in_progress row belongs
	// to another run; it stays untouched until it finishes or the stall
	// monitor resets it.
	if prev, err := o.statuses.Get(ctx, opts.UserID, opts.TaskType); err == nil {
		if terr := prev.Transition(status.StateInProgress); terr != nil {
			res.Outcome = OutcomeFailed
			res.Duration = time.Since(start)
			return res, fmt.Errorf("starting run for %s/%s: %w", opts.UserID, opts.TaskType, terr)
		}
	} else if !errors.Is(err, status.ErrStatusNotFound) {
		res.Outcome = OutcomeFailed
		res.Duration = time.Since(start)
		return res, fmt.Errorf("reading existing status: %w", err)
	}

	st := &status.ProcessingStatus{
		UserID:       opts.UserID,
		TaskType:     opts.TaskType,
		State:        status.StateInProgress,
		TotalItems:   total,
		Message:      "extraction started",
		CurrentStage: "starting",
		StartedAt:    start,
		LastUpdateAt: start,
	}
	if err := o.statuses.Upsert(ctx, st); err != nil {
		res.Outcome = OutcomeFailed
		res.Duration = time.Since(start)
		o.metrics.RunsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return res, fmt.Errorf("initializing status: %w", err)
	}

	batchNum := 0
	for offset := 0; offset < total; offset += batchSize {
		if rc.Cancelled() || ctx.Err() != nil {
			o.finalize(ctx, st, status.StateStopped, "stopped before completion")
			res.Outcome = OutcomeStopped
			res.Duration = time.Since(start)
			o.metrics.RunsTotal.WithLabelValues(string(OutcomeStopped)).Inc()
			o.log.Info("extraction run stopped",
				zap.String("user_id", opts.UserID),
				zap.Int("processed", res.ProcessedNotes),
				zap.Int("total", total),
			)
			return res, nil
		}

		batchNum++
		end := offset + batchSize
		if end > total {
			end = total
		}
		batch := notes[offset:end]

		batchStart := time.Now()
		batchMentions := o.extractBatch(batch, opts.MinNoteLength, res)

		if len(batchMentions) > 0 {
			insertStart := time.Now()
			if err := o.mentions.InsertBatch(ctx, batchMentions); err != nil {
				o.finalize(ctx, st, status.StateFailed, fmt.Sprintf("batch %d persistence failed: %v", batchNum, err))
				res.Outcome = OutcomeFailed
				res.Duration = time.Since(start)
				o.metrics.RunsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
				return res, fmt.Errorf("persisting batch %d: %w", batchNum, err)
			}
			o.metrics.DBInsertDuration.Observe(time.Since(insertStart).Seconds())
		}
		// The batch slice goes out of scope here; nothing beyond one
		// batch of mentions is ever retained.
		res.ExtractedMentions += len(batchMentions)
		res.ProcessedNotes += len(batch)
		o.metrics.BatchesPersistedTotal.Inc()
		o.metrics.BatchDuration.Observe(time.Since(batchStart).Seconds())

		snap := status.Snapshot{
			Processed: res.ProcessedNotes,
			Total:     total,
			Stage:     fmt.Sprintf("batch_%d", batchNum),
			Message:   fmt.Sprintf("processed %d of %d notes", res.ProcessedNotes, total),
		}

		st.ProcessedItems = snap.Processed
		st.Progress = snap.Percent()
		st.CurrentStage = snap.Stage
		st.Message = snap.Message
		st.LastUpdateAt = time.Now()
		if err := o.statuses.Upsert(ctx, st); err != nil {
			// A lost progress checkpoint does not invalidate persisted
			// mentions; log and keep going.
			o.log.Warn("failed to update processing status", zap.Error(err), zap.String("stage", snap.Stage))
		}

		if opts.OnProgress != nil {
			opts.OnProgress(snap)
		}
	}

	o.finalize(ctx, st, status.StateCompleted, fmt.Sprintf("extracted %d mentions from %d notes", res.ExtractedMentions, res.ProcessedNotes))
	res.Outcome = OutcomeCompleted
	res.Duration = time.Since(start)
	o.metrics.RunsTotal.WithLabelValues(string(OutcomeCompleted)).Inc()

	o.log.Info("extraction run completed",
		zap.String("user_id", opts.UserID),
		zap.Int("notes", res.ProcessedNotes),
		zap.Int("skipped", res.SkippedNotes),
		zap.Int("mentions", res.ExtractedMentions),
		zap.Duration("duration", res.Duration),
	)

	return res, nil
}

// extractBatch runs the engine over one batch. Malformed notes and
// per-note extraction errors are logged and skipped so one bad note
// cannot lose the rest of the batch.
func (o *Orchestrator) extractBatch(batch []*note.Record, minNoteLength int, res *Result) []*mention.Mention {
	var out []*mention.Mention

	for _, n := range batch {
		if err := n.Validate(minNoteLength); err != nil {
			res.SkippedNotes++
			o.metrics.NotesSkippedTotal.WithLabelValues(skipReason(err)).Inc()
			o.log.Warn("skipping note",
				zap.String("note_id", n.ID),
				zap.String("patient_id", n.PatientID),
				zap.Error(err),
			)
			continue
		}

		mentions, err := o.engine.ExtractNote(n)
		if err != nil {
			res.SkippedNotes++
			o.metrics.NotesSkippedTotal.WithLabelValues("extract_error").Inc()
			o.log.Warn("extraction failed for note", zap.String("note_id", n.ID), zap.Error(err))
			continue
		}

		o.metrics.NotesProcessedTotal.Inc()
		for _, m := range mentions {
			o.metrics.MentionsExtracted.WithLabelValues(string(m.Kind)).Inc()
		}
		out = append(out, mentions...)
	}

	return out
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, note.ErrMissingPatientID):
		return "missing_patient_id"
	case errors.Is(err, note.ErrNoteTooShort):
		return "note_too_short"
	}
	return "invalid"
}

func (o *Orchestrator) finalize(ctx context.Context, st *status.ProcessingStatus, state status.State, message string) {
	// The final status write must land even when the run context was
	// cancelled, or the row would be stuck in_progress until the stall
	// monitor resets it.
	ctx = context.WithoutCancel(ctx)

	if err := st.Transition(state); err != nil {
		o.log.Error("refusing status finalization", zap.Error(err))
		return
	}

	now := time.Now()
	st.Message = message
	st.LastUpdateAt = now
	st.FinishedAt = &now
	if state == status.StateCompleted {
		st.Progress = 100
		st.CurrentStage = "completed"
	}

	if err := o.statuses.Upsert(ctx, st); err != nil {
		o.log.Error("failed to finalize processing status",
			zap.String("state", string(state)),
			zap.Error(err),
		)
	}
}
