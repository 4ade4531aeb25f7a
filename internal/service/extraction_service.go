package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/carelens/notescan/internal/automaton"
	"github.com/carelens/notescan/internal/config"
	"github.com/carelens/notescan/internal/domain/mention"
	"github.com/carelens/notescan/internal/domain/note"
	"github.com/carelens/notescan/internal/domain/pattern"
	"github.com/carelens/notescan/internal/domain/status"
	"github.com/carelens/notescan/internal/extract"
	"github.com/carelens/notescan/internal/orchestrator"
	"github.com/carelens/notescan/pkg/metrics"
)

// RunOptions configures one extraction run.
type RunOptions struct {
	UserID   string
	TaskType string
	// BatchSize falls back to the configured default when unset.
	BatchSize  int
	OnProgress func(status.Snapshot)
}

// RunSummary is returned to the embedding application once a run ends.
type RunSummary struct {
	Outcome           orchestrator.Outcome
	ProcessedNotes    int
	SkippedNotes      int
	ExtractedMentions int
	DurationSeconds   float64
}

type ExtractionService struct {
	mentions mention.Repository
	statuses status.Repository
	metrics  *metrics.Collector
	cfg      config.ExtractionConfig
	log      *zap.Logger
	tracer   trace.Tracer
}

func NewExtractionService(mentions mention.Repository, statuses status.Repository, collector *metrics.Collector, cfg config.ExtractionConfig, log *zap.Logger) *ExtractionService {
	return &ExtractionService{
		mentions: mentions,
		statuses: statuses,
		metrics:  collector,
		cfg:      cfg,
		log:      log,
		tracer:   otel.Tracer("notescan/extraction"),
	}
}

// BuildAutomaton assembles the library and matcher from raw patterns.
// Reusable across runs as long as the pattern set is stable.
func (s *ExtractionService) BuildAutomaton(patterns []*pattern.SymptomPattern) (*automaton.Automaton[*pattern.SymptomPattern], error) {
	lib, err := pattern.NewLibrary(patterns)
	if err != nil {
		return nil, err
	}

	for _, w := range lib.Warnings() {
		s.log.Warn("skipping unusable pattern",
			zap.String("pattern_id", w.PatternID),
			zap.String("phrase", w.Phrase),
			zap.Error(w.Reason),
		)
	}
	s.metrics.PatternsLoaded.Set(float64(lib.Len()))

	return extract.BuildAutomaton(lib)
}

// RunExtraction scans every note against the pattern set and persists
// the resulting mentions in batches. A pattern set that yields no
// usable library is fatal before any batch begins; per-note problems
// are logged and skipped inside the run.
//
// rc may be nil, in which case the run cannot be cancelled externally.
func (s *ExtractionService) RunExtraction(ctx context.Context, rc *orchestrator.RunContext, notes []*note.Record, patterns []*pattern.SymptomPattern, opts RunOptions) (*RunSummary, error) {
	ctx, span := s.tracer.Start(ctx, "extraction.run",
		trace.WithAttributes(
			attribute.Int("notes.count", len(notes)),
			attribute.Int("patterns.count", len(patterns)),
			attribute.String("user.id", opts.UserID),
		),
	)
	defer span.End()

	start := time.Now()

	ac, err := s.BuildAutomaton(patterns)
	if err != nil {
		s.log.Error("failed to build pattern automaton", zap.Error(err))
		return nil, err
	}

	engine, err := extract.NewEngine(ac)
	if err != nil {
		return nil, err
	}

	s.log.Info("extraction run starting",
		zap.String("user_id", opts.UserID),
		zap.Int("notes", len(notes)),
		zap.Int("patterns", ac.Len()),
		zap.Int("batch_size", s.batchSize(opts)),
	)

	if rc == nil {
		rc = orchestrator.NewRunContext()
	}

	orch := orchestrator.New(engine, s.mentions, s.statuses, s.metrics, s.log)
	res, err := orch.Run(ctx, rc, notes, orchestrator.Options{
		UserID:        opts.UserID,
		TaskType:      opts.TaskType,
		BatchSize:     s.batchSize(opts),
		MinNoteLength: s.cfg.MinNoteLength,
		OnProgress:    opts.OnProgress,
	})
	if err != nil {
		span.RecordError(err)
		summary := &RunSummary{
			Outcome:         orchestrator.OutcomeFailed,
			DurationSeconds: time.Since(start).Seconds(),
		}
		// Tolerate a nil result from a run that never started.
		if res != nil {
			summary.ProcessedNotes = res.ProcessedNotes
			summary.SkippedNotes = res.SkippedNotes
			summary.ExtractedMentions = res.ExtractedMentions
		}
		return summary, err
	}

	return &RunSummary{
		Outcome:           res.Outcome,
		ProcessedNotes:    res.ProcessedNotes,
		SkippedNotes:      res.SkippedNotes,
		ExtractedMentions: res.ExtractedMentions,
		DurationSeconds:   time.Since(start).Seconds(),
	}, nil
}

func (s *ExtractionService) batchSize(opts RunOptions) int {
	if opts.BatchSize > 0 {
		return opts.BatchSize
	}
	if s.cfg.BatchSize > 0 {
		return s.cfg.BatchSize
	}
	return orchestrator.DefaultBatchSize
}
