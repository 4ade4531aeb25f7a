package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/carelens/notescan/internal/config"
	"github.com/carelens/notescan/internal/domain/note"
	"github.com/carelens/notescan/internal/library"
	"github.com/carelens/notescan/internal/orchestrator"
	"github.com/carelens/notescan/internal/repository"
	"github.com/carelens/notescan/internal/service"
	"github.com/carelens/notescan/pkg/database"
	"github.com/carelens/notescan/pkg/logger"
	"github.com/carelens/notescan/pkg/metrics"
	"github.com/carelens/notescan/pkg/tracer"
)

const notePageSize = 5000

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notescan:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		libraryPath = flag.String("library", "", "CSV/XLSX symptom library seed; replaces the stored library before the run")
		userID      = flag.String("user", "system", "user id owning the processing status row")
		taskType    = flag.String("task", "symptom_extraction", "task type for the processing status row")
		metricsAddr = flag.String("metrics-addr", "", "optional listen address for the prometheus endpoint")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	collector := metrics.NewCollector(cfg.App.Name, prometheus.DefaultRegisterer)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.MetricsHandler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	patternRepo := repository.NewPatternRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	mentionRepo := repository.NewMentionRepository(db)
	statusRepo := repository.NewStatusRepository(db)

	// Seed or refresh the stored library when a file is supplied.
	seedPath := *libraryPath
	if seedPath == "" {
		seedPath = cfg.Extraction.LibraryPath
	}
	if seedPath != "" {
		lib, err := library.NewLoader(log).LoadFile(seedPath)
		if err != nil {
			return fmt.Errorf("loading symptom library: %w", err)
		}
		if err := patternRepo.ReplaceAll(ctx, lib.Patterns()); err != nil {
			return err
		}
	}

	patterns, err := patternRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	notes, err := loadAllNotes(ctx, noteRepo)
	if err != nil {
		return err
	}

	monitor := orchestrator.NewStallMonitor(statusRepo, cfg.Extraction.StallThreshold, collector, log)
	go monitor.Run(ctx)

	rc := orchestrator.NewRunContext()
	go func() {
		<-ctx.Done()
		rc.Cancel()
	}()

	svc := service.NewExtractionService(mentionRepo, statusRepo, collector, cfg.Extraction, log)
	summary, err := svc.RunExtraction(ctx, rc, notes, patterns, service.RunOptions{
		UserID:   *userID,
		TaskType: *taskType,
	})
	if err != nil {
		return err
	}

	log.Info("run finished",
		zap.String("outcome", string(summary.Outcome)),
		zap.Int("notes", summary.ProcessedNotes),
		zap.Int("skipped", summary.SkippedNotes),
		zap.Int("mentions", summary.ExtractedMentions),
		zap.Float64("seconds", summary.DurationSeconds),
	)
	return nil
}

func loadAllNotes(ctx context.Context, repo *repository.NoteRepository) ([]*note.Record, error) {
	total, err := repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	notes := make([]*note.Record, 0, total)
	for offset := 0; ; offset += notePageSize {
		page, err := repo.List(ctx, offset, notePageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		notes = append(notes, page...)
	}
	return notes, nil
}
