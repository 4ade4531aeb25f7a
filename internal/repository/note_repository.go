package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/carelens/notescan/internal/domain/note"
)

type NoteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&note.Record{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting notes: %w", err)
	}
	return count, nil
}

func (r *NoteRepository) List(ctx context.Context, offset, limit int) ([]*note.Record, error) {
	var rows []*note.Record
	err := r.db.WithContext(ctx).
		Order("note_id").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return rows, nil
}
