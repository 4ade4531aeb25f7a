package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carelens/notescan/internal/domain/status"
)

type StatusRepository struct {
	db *gorm.DB
}

func NewStatusRepository(db *gorm.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

func (r *StatusRepository) Upsert(ctx context.Context, s *status.ProcessingStatus) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "task_type"},
			},
			UpdateAll: true,
		}).
		Create(s).Error
	if err != nil {
		return fmt.Errorf("upserting processing status: %w", err)
	}
	return nil
}

func (r *StatusRepository) Get(ctx context.Context, userID, taskType string) (*status.ProcessingStatus, error) {
	var s status.ProcessingStatus
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_type = ?", userID, taskType).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, status.ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading processing status: %w", err)
	}
	return &s, nil
}

func (r *StatusRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*status.ProcessingStatus, error) {
	var rows []*status.ProcessingStatus
	err := r.db.WithContext(ctx).
		Where("state = ? AND last_update_at < ?", status.StateInProgress, cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing stale statuses: %w", err)
	}
	return rows, nil
}
