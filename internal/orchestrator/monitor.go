package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/carelens/notescan/internal/domain/status"
	"github.com/carelens/notescan/pkg/metrics"
)

// StallMonitor watches in-progress status rows and forces any that
// stopped updating to reset, so a fresh run can supersede a crashed or
// wedged one. Resetting is safe because mention persistence is
// idempotent: the superseding run reprocesses from scratch without
// double-counting.
type StallMonitor struct {
	statuses  status.Repository
	threshold time.Duration
	interval  time.Duration
	metrics   *metrics.Collector
	log       *zap.Logger
}

func NewStallMonitor(statuses status.Repository, threshold time.Duration, collector *metrics.Collector, log *zap.Logger) *StallMonitor {
	return &StallMonitor{
		statuses:  statuses,
		threshold: threshold,
		interval:  threshold / 2,
		metrics:   collector,
		log:       log,
	}
}

// Run blocks, sweeping on a ticker until ctx is cancelled.
func (m *StallMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep resets every in-progress status with no update since the stall
// threshold.
func (m *StallMonitor) Sweep(ctx context.Context) {
	now := time.Now()

	stale, err := m.statuses.ListStale(ctx, now.Add(-m.threshold))
	if err != nil {
		m.log.Error("stall sweep failed to list statuses", zap.Error(err))
		return
	}

	for _, st := range stale {
		// The row may have progressed or finished between the query and
		// this sweep; Stalled is the authoritative predicate.
		if !st.Stalled(now, m.threshold) {
			continue
		}

		lastUpdate := st.LastUpdateAt
		if err := st.Transition(status.StateReset); err != nil {
			m.log.Error("refusing stall reset",
				zap.String("user_id", st.UserID),
				zap.String("task_type", st.TaskType),
				zap.Error(err),
			)
			continue
		}
		st.Message = "reset by stall monitor: no progress update within threshold"
		st.LastUpdateAt = time.Now()

		if err := m.statuses.Upsert(ctx, st); err != nil {
			m.log.Error("failed to reset stalled status",
				zap.String("user_id", st.UserID),
				zap.String("task_type", st.TaskType),
				zap.Error(err),
			)
			continue
		}

		m.metrics.StallResetsTotal.Inc()
		m.log.Warn("reset stalled extraction run",
			zap.String("user_id", st.UserID),
			zap.String("task_type", st.TaskType),
			zap.Int("processed", st.ProcessedItems),
			zap.Int("total", st.TotalItems),
			zap.Time("last_update", lastUpdate),
		)
	}
}
