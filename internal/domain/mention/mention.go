package mention

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelens/notescan/internal/domain/pattern"
)

// ProblemIdentified is the fixed marker written into the HRSN status
// field named by a problem pattern's category.
const ProblemIdentified = "Problem Identified"

// ProblemNote distinguishes HRSN problem mentions from plain symptom
// mentions in downstream reporting.
const ProblemNote = "Problem (HRSN indicator)"

// HRSNFields carries the structured social-needs flags on a mention.
// At most one field is set, matching the source pattern's category.
type HRSNFields struct {
	HousingStatus        string `gorm:"column:housing_status;type:varchar(50)" json:"housing_status,omitempty"`
	FoodStatus           string `gorm:"column:food_status;type:varchar(50)" json:"food_status,omitempty"`
	FinancialStatus      string `gorm:"column:financial_status;type:varchar(50)" json:"financial_status,omitempty"`
	TransportationStatus string `gorm:"column:transportation_status;type:varchar(50)" json:"transportation_status,omitempty"`
	EmploymentStatus     string `gorm:"column:employment_status;type:varchar(50)" json:"employment_status,omitempty"`
	UtilitiesStatus      string `gorm:"column:utilities_status;type:varchar(50)" json:"utilities_status,omitempty"`
	SafetyStatus         string `gorm:"column:safety_status;type:varchar(50)" json:"safety_status,omitempty"`
}

// Set writes the ProblemIdentified marker into the field matching the
// given category. Unknown categories leave all fields unset.
func (f *HRSNFields) Set(c pattern.HRSNCategory) {
	switch c {
	case pattern.HRSNHousing:
		f.HousingStatus = ProblemIdentified
	case pattern.HRSNFood:
		f.FoodStatus = ProblemIdentified
	case pattern.HRSNFinancial:
		f.FinancialStatus = ProblemIdentified
	case pattern.HRSNTransportation:
		f.TransportationStatus = ProblemIdentified
	case pattern.HRSNEmployment:
		f.EmploymentStatus = ProblemIdentified
	case pattern.HRSNUtilities:
		f.UtilitiesStatus = ProblemIdentified
	case pattern.HRSNSafety:
		f.SafetyStatus = ProblemIdentified
	}
}

// IsZero reports whether no HRSN flag is set.
func (f HRSNFields) IsZero() bool {
	return f == HRSNFields{}
}

// Mention is one occurrence of a library phrase at a specific position
// within a specific note. Never mutated after creation. Storage
// uniqueness is keyed by (patient_id, pattern_id, position_in_text,
// date_of_service); the same phrase at a different offset in the same
// note is a distinct, valid mention.
type Mention struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PatientID     string `gorm:"column:patient_id;type:varchar(64);not null;uniqueIndex:ux_mentions_natural;index"`
	DateOfService string `gorm:"column:date_of_service;type:varchar(10);not null;uniqueIndex:ux_mentions_natural"`

	PatternID          string       `gorm:"column:pattern_id;type:varchar(64);not null;uniqueIndex:ux_mentions_natural;index"`
	PhraseText         string       `gorm:"column:phrase_text;type:text;not null"`
	Diagnosis          string       `gorm:"column:diagnosis;type:varchar(255)"`
	DiagnosticCategory string       `gorm:"column:diagnostic_category;type:varchar(255);index"`
	Kind               pattern.Kind `gorm:"column:kind;type:varchar(20);not null;index"`

	// PositionInText is the offset of the match start within the note,
	// distinguishing repeated occurrences of the same phrase.
	PositionInText int `gorm:"column:position_in_text;not null;uniqueIndex:ux_mentions_natural"`

	HRSN HRSNFields `gorm:"embedded"`

	// Notes carries the problem marker for HRSN mentions.
	Notes string `gorm:"column:notes;type:varchar(100)"`
}

func (Mention) TableName() string {
	return "clinical.symptom_mentions"
}

// New builds a mention for the given pattern occurrence, populating the
// HRSN flags when the pattern is a problem indicator.
func New(patientID, dateOfService string, p *pattern.SymptomPattern, position int) *Mention {
	m := &Mention{
		ID:                 uuid.New(),
		PatientID:          patientID,
		DateOfService:      dateOfService,
		PatternID:          p.ID,
		PhraseText:         p.PhraseText,
		Diagnosis:          p.Diagnosis,
		DiagnosticCategory: p.DiagnosticCategory,
		Kind:               p.Kind,
		PositionInText:     position,
	}

	if p.Kind == pattern.KindProblem {
		m.HRSN.Set(p.HRSNCategory)
		m.Notes = ProblemNote
	}

	return m
}
