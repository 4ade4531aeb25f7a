package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/carelens/notescan/internal/domain/pattern"
)

type PatternRepository struct {
	db *gorm.DB
}

func NewPatternRepository(db *gorm.DB) *PatternRepository {
	return &PatternRepository{db: db}
}

func (r *PatternRepository) ListActive(ctx context.Context) ([]*pattern.SymptomPattern, error) {
	var rows []*pattern.SymptomPattern
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("pattern_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing active patterns: %w", err)
	}
	return rows, nil
}

// ReplaceAll swaps the stored library for a freshly loaded seed set in
// one transaction, so a run never sees a half-replaced library.
func (r *PatternRepository) ReplaceAll(ctx context.Context, patterns []*pattern.SymptomPattern) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&pattern.SymptomPattern{}).Error; err != nil {
			return fmt.Errorf("clearing pattern library: %w", err)
		}
		if len(patterns) == 0 {
			return nil
		}
		if err := tx.Create(patterns).Error; err != nil {
			return fmt.Errorf("storing pattern library: %w", err)
		}
		return nil
	})
}
