package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carelens/notescan/internal/domain/status"
	"github.com/carelens/notescan/internal/orchestrator"
)

func TestStallMonitor_ResetsStalledRuns(t *testing.T) {
	statusRepo := newFakeStatusRepo()
	now := time.Now()

	stalled := &status.ProcessingStatus{
		UserID:         "u-stalled",
		TaskType:       "symptom_extraction",
		State:          status.StateInProgress,
		ProcessedItems: 400,
		TotalItems:     5000,
		LastUpdateAt:   now.Add(-5 * time.Minute),
	}
	healthy := &status.ProcessingStatus{
		UserID:       "u-healthy",
		TaskType:     "symptom_extraction",
		State:        status.StateInProgress,
		LastUpdateAt: now,
	}
	finished := &status.ProcessingStatus{
		UserID:       "u-done",
		TaskType:     "symptom_extraction",
		State:        status.StateCompleted,
		LastUpdateAt: now.Add(-time.Hour),
	}
	require.NoError(t, statusRepo.Upsert(context.Background(), stalled))
	require.NoError(t, statusRepo.Upsert(context.Background(), healthy))
	require.NoError(t, statusRepo.Upsert(context.Background(), finished))

	monitor := orchestrator.NewStallMonitor(statusRepo, time.Minute, testCollector(), zap.NewNop())
	monitor.Sweep(context.Background())

	st, err := statusRepo.Get(context.Background(), "u-stalled", "symptom_extraction")
	require.NoError(t, err)
	assert.Equal(t, status.StateReset, st.State)
	assert.Equal(t, 400, st.ProcessedItems, "counts survive the reset for visibility")

	st, err = statusRepo.Get(context.Background(), "u-healthy", "symptom_extraction")
	require.NoError(t, err)
	assert.Equal(t, status.StateInProgress, st.State)

	st, err = statusRepo.Get(context.Background(), "u-done", "symptom_extraction")
	require.NoError(t, err)
	assert.Equal(t, status.StateCompleted, st.State)
}

// listsEverythingRepo returns every row from ListStale, the way a
// query snapshot can go stale by the time the sweep acts on it.
type listsEverythingRepo struct {
	*fakeStatusRepo
}

func (f *listsEverythingRepo) ListStale(_ context.Context, _ time.Time) ([]*status.ProcessingStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*status.ProcessingStatus
	for _, s := range f.rows {
		copied := s
		out = append(out, &copied)
	}
	return out, nil
}

func TestStallMonitor_RechecksCandidatesBeforeReset(t *testing.T) {
	inner := newFakeStatusRepo()
	now := time.Now()

	stalled := &status.ProcessingStatus{
		UserID:       "u-stalled",
		TaskType:     "symptom_extraction",
		State:        status.StateInProgress,
		LastUpdateAt: now.Add(-5 * time.Minute),
	}
	recovered := &status.ProcessingStatus{
		UserID:       "u-recovered",
		TaskType:     "symptom_extraction",
		State:        status.StateInProgress,
		LastUpdateAt: now,
	}
	finished := &status.ProcessingStatus{
		UserID:       "u-done",
		TaskType:     "symptom_extraction",
		State:        status.StateCompleted,
		LastUpdateAt: now.Add(-time.Hour),
	}
	require.NoError(t, inner.Upsert(context.Background(), stalled))
	require.NoError(t, inner.Upsert(context.Background(), recovered))
	require.NoError(t, inner.Upsert(context.Background(), finished))

	monitor := orchestrator.NewStallMonitor(&listsEverythingRepo{inner}, time.Minute, testCollector(), zap.NewNop())
	monitor.Sweep(context.Background())

	st, err := inner.Get(context.Background(), "u-stalled", "symptom_extraction")
	require.NoError(t, err)
	assert.Equal(t, status.StateReset, st.State)

	st, err = inner.Get(context.Background(), "u-recovered", "symptom_extraction")
	require.NoError(t, err)
	assert.Equal(t, status.StateInProgress, st.State, "rows with fresh updates are left alone")

	st, err = inner.Get(context.Background(), "u-done", "symptom_extraction")
	require.NoError(t, err)
	assert.Equal(t, status.StateCompleted, st.State, "finished rows are never reset")
}

func TestStallMonitor_RunStopsOnContextCancel(t *testing.T) {
	monitor := orchestrator.NewStallMonitor(newFakeStatusRepo(), 20*time.Millisecond, testCollector(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after context cancellation")
	}
}
