package note

import (
	"strings"
	"time"
)

// Record is one clinical note as handed over by the ingestion layer.
// Field normalization from upload formats happens upstream; the
// extraction pipeline treats records as read-only.
type Record struct {
	ID        string    `gorm:"column:note_id;type:varchar(64);primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PatientID     string `gorm:"column:patient_id;type:varchar(64);not null;index"`
	DateOfService string `gorm:"column:date_of_service;type:varchar(10);not null;index"`
	ProviderID    string `gorm:"column:provider_id;type:varchar(64)"`

	Text string `gorm:"column:note_text;type:text;not null"`
}

func (Record) TableName() string {
	return "clinical.notes"
}

// Validate reports whether a record carries enough to extract from.
// minLength guards against empty or degenerate note text.
func (r *Record) Validate(minLength int) error {
	if strings.TrimSpace(r.PatientID) == "" {
		return ErrMissingPatientID
	}
	if len(strings.TrimSpace(r.Text)) < minLength {
		return ErrNoteTooShort
	}
	return nil
}
