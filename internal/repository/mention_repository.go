// Package repository provides the postgres-backed implementations of
// the domain source and sink interfaces.
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carelens/notescan/internal/domain/mention"
)

type MentionRepository struct {
	db *gorm.DB
}

func NewMentionRepository(db *gorm.DB) *MentionRepository {
	return &MentionRepository{db: db}
}

// InsertBatch appends mentions. Conflicts on the natural key
// (patient, pattern, position, date of service) are silently skipped,
// which is what makes orchestrator reruns idempotent.
func (r *MentionRepository) InsertBatch(ctx context.Context, mentions []*mention.Mention) error {
	if len(mentions) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "patient_id"},
				{Name: "pattern_id"},
				{Name: "position_in_text"},
				{Name: "date_of_service"},
			},
			DoNothing: true,
		}).
		Create(mentions).Error
	if err != nil {
		return fmt.Errorf("inserting mention batch: %w", err)
	}
	return nil
}

func (r *MentionRepository) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&mention.Mention{}).
		Where("patient_id = ?", patientID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting mentions for patient: %w", err)
	}
	return count, nil
}
