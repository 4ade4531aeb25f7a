package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carelens/notescan/internal/config"
	"github.com/carelens/notescan/internal/domain/mention"
	"github.com/carelens/notescan/internal/domain/note"
	"github.com/carelens/notescan/internal/domain/pattern"
	"github.com/carelens/notescan/internal/domain/status"
	"github.com/carelens/notescan/internal/orchestrator"
	"github.com/carelens/notescan/internal/service"
	"github.com/carelens/notescan/pkg/metrics"
)

type memMentionRepo struct {
	mu   sync.Mutex
	rows []*mention.Mention
}

func (r *memMentionRepo) InsertBatch(_ context.Context, mentions []*mention.Mention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, mentions...)
	return nil
}

func (r *memMentionRepo) CountByPatient(_ context.Context, patientID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.rows {
		if m.PatientID == patientID {
			n++
		}
	}
	return n, nil
}

type memStatusRepo struct {
	mu   sync.Mutex
	rows map[string]status.ProcessingStatus
}

func (r *memStatusRepo) Upsert(_ context.Context, s *status.ProcessingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		r.rows = make(map[string]status.ProcessingStatus)
	}
	r.rows[s.UserID+"/"+s.TaskType] = *s
	return nil
}

func (r *memStatusRepo) Get(_ context.Context, userID, taskType string) (*status.ProcessingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[userID+"/"+taskType]
	if !ok {
		return nil, status.ErrStatusNotFound
	}
	return &s, nil
}

func (r *memStatusRepo) ListStale(_ context.Context, _ time.Time) ([]*status.ProcessingStatus, error) {
	return nil, nil
}

func newService(mentions *memMentionRepo, statuses *memStatusRepo) *service.ExtractionService {
	return service.NewExtractionService(
		mentions,
		statuses,
		metrics.NewCollector("test", prometheus.NewRegistry()),
		config.ExtractionConfig{BatchSize: 5, MinNoteLength: 3},
		zap.NewNop(),
	)
}

func TestRunExtraction_EndToEnd(t *testing.T) {
	mentions := &memMentionRepo{}
	statuses := &memStatusRepo{}
	svc := newService(mentions, statuses)

	patterns := []*pattern.SymptomPattern{
		{ID: "p1", PhraseText: "back pain", Kind: pattern.KindSymptom, Diagnosis: "Dorsalgia", DiagnosticCategory: "Musculoskeletal"},
		{ID: "p2", PhraseText: "pain", Kind: pattern.KindSymptom},
		{ID: "p3", PhraseText: "homeless", Kind: pattern.KindProblem, HRSNCategory: pattern.HRSNHousing},
	}
	notes := []*note.Record{
		{ID: "n1", PatientID: "pat-1", DateOfService: "2026-07-01", Text: "reports back pain and hip pain"},
		{ID: "n2", PatientID: "pat-2", DateOfService: "2026-07-02", Text: "patient reports being homeless and homeless again"},
		{ID: "n3", PatientID: "pat-3", DateOfService: "2026-07-03", Text: "routine visit, no findings"},
	}

	var progressCalls int
	summary, err := svc.RunExtraction(context.Background(), nil, notes, patterns, service.RunOptions{
		UserID:   "u1",
		TaskType: "symptom_extraction",
		OnProgress: func(s status.Snapshot) {
			progressCalls++
		},
	})
	require.NoError(t, err)

	assert.Equal(t, orchestrator.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 3, summary.ProcessedNotes)
	assert.Zero(t, summary.SkippedNotes)
	// n1: back pain, pain x2; n2: homeless x2; n3: none
	assert.Equal(t, 5, summary.ExtractedMentions)
	assert.GreaterOrEqual(t, summary.DurationSeconds, 0.0)
	assert.Equal(t, 1, progressCalls, "3 notes in one batch of 5")

	housing := 0
	for _, m := range mentions.rows {
		if m.HRSN.HousingStatus == mention.ProblemIdentified {
			housing++
		}
	}
	assert.Equal(t, 2, housing)

	st, err := statuses.Get(context.Background(), "u1", "symptom_extraction")
	require.NoError(t, err)
	assert.Equal(t, status.StateCompleted, st.State)
}

func TestRunExtraction_EmptyLibraryIsFatal(t *testing.T) {
	svc := newService(&memMentionRepo{}, &memStatusRepo{})

	patterns := []*pattern.SymptomPattern{
		{ID: "p1", PhraseText: "   ", Kind: pattern.KindSymptom},
	}

	_, err := svc.RunExtraction(context.Background(), nil, []*note.Record{
		{ID: "n1", PatientID: "pat-1", DateOfService: "2026-07-01", Text: "back pain"},
	}, patterns, service.RunOptions{UserID: "u1", TaskType: "symptom_extraction"})

	assert.ErrorIs(t, err, pattern.ErrEmptyLibrary)
}

func TestRunExtraction_MalformedPatternsSkippedNotFatal(t *testing.T) {
	mentions := &memMentionRepo{}
	svc := newService(mentions, &memStatusRepo{})

	// p1 has no phrase, p2 a bogus kind, p4 duplicates p3's phrase;
	// only p3 should survive library assembly.
	patterns := []*pattern.SymptomPattern{
		{ID: "p1", PhraseText: "", Kind: pattern.KindSymptom},
		{ID: "p2", PhraseText: "pain", Kind: "bogus"},
		{ID: "p3", PhraseText: "pain", Kind: pattern.KindSymptom},
		{ID: "p4", PhraseText: "PAIN", Kind: pattern.KindSymptom},
	}

	summary, err := svc.RunExtraction(context.Background(), nil, []*note.Record{
		{ID: "n1", PatientID: "pat-1", DateOfService: "2026-07-01", Text: "pain"},
	}, patterns, service.RunOptions{UserID: "u1", TaskType: "symptom_extraction"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ExtractedMentions)
	require.Len(t, mentions.rows, 1)
	assert.Equal(t, "p3", mentions.rows[0].PatternID)
}

// failingStatusRepo refuses every write, as when the status store is
// down at run start.
type failingStatusRepo struct {
	memStatusRepo
}

func (r *failingStatusRepo) Upsert(context.Context, *status.ProcessingStatus) error {
	return errors.New("status store unavailable")
}

func TestRunExtraction_StatusStoreOutage(t *testing.T) {
	mentions := &memMentionRepo{}
	svc := service.NewExtractionService(
		mentions,
		&failingStatusRepo{},
		metrics.NewCollector("test", prometheus.NewRegistry()),
		config.ExtractionConfig{BatchSize: 5, MinNoteLength: 3},
		zap.NewNop(),
	)

	summary, err := svc.RunExtraction(context.Background(), nil, []*note.Record{
		{ID: "n1", PatientID: "pat-1", DateOfService: "2026-07-01", Text: "back pain"},
	}, []*pattern.SymptomPattern{
		{ID: "p1", PhraseText: "pain", Kind: pattern.KindSymptom},
	}, service.RunOptions{UserID: "u1", TaskType: "symptom_extraction"})

	require.Error(t, err)
	assert.ErrorContains(t, err, "initializing status")
	require.NotNil(t, summary)
	assert.Equal(t, orchestrator.OutcomeFailed, summary.Outcome)
	assert.Zero(t, summary.ProcessedNotes)
	assert.Empty(t, mentions.rows)
}

func TestRunExtraction_ExternalCancellation(t *testing.T) {
	svc := newService(&memMentionRepo{}, &memStatusRepo{})

	rc := orchestrator.NewRunContext()
	rc.Cancel()

	summary, err := svc.RunExtraction(context.Background(), rc, []*note.Record{
		{ID: "n1", PatientID: "pat-1", DateOfService: "2026-07-01", Text: "back pain"},
	}, []*pattern.SymptomPattern{
		{ID: "p1", PhraseText: "pain", Kind: pattern.KindSymptom},
	}, service.RunOptions{UserID: "u1", TaskType: "symptom_extraction"})
	require.NoError(t, err)

	assert.Equal(t, orchestrator.OutcomeStopped, summary.Outcome)
	assert.Zero(t, summary.ProcessedNotes)
}
