package status

import (
	"context"
	"time"
)

type Repository interface {
	// Upsert creates or replaces the live row for (userID, taskType).
	Upsert(ctx context.Context, s *ProcessingStatus) error
	Get(ctx context.Context, userID, taskType string) (*ProcessingStatus, error)
	// ListStale returns in-progress rows with no update since the cutoff,
	// for the stall monitor.
	ListStale(ctx context.Context, cutoff time.Time) ([]*ProcessingStatus, error)
}
