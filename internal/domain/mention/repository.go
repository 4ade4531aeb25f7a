package mention

import "context"

// Repository is the persistence sink for extracted mentions.
type Repository interface {
	// InsertBatch appends mentions, ignoring rows whose natural key
	// (patient, pattern, position, date of service) already exists.
	// Re-inserting a duplicate is a silent no-op, never an error, which
	// makes re-running extraction from scratch safe.
	InsertBatch(ctx context.Context, mentions []*Mention) error
	CountByPatient(ctx context.Context, patientID string) (int64, error)
}
