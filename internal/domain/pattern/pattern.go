package pattern

import (
	"strings"
	"time"
)

type Kind string

const (
	// KindSymptom marks a clinical/behavioral-health finding.
	KindSymptom Kind = "symptom"
	// KindProblem marks an HRSN (health-related social needs) indicator.
	KindProblem Kind = "problem"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindSymptom, KindProblem:
		return true
	}
	return false
}

type HRSNCategory string

const (
	HRSNHousing        HRSNCategory = "housing"
	HRSNFood           HRSNCategory = "food"
	HRSNFinancial      HRSNCategory = "financial"
	HRSNTransportation HRSNCategory = "transportation"
	HRSNEmployment     HRSNCategory = "employment"
	HRSNUtilities      HRSNCategory = "utilities"
	HRSNSafety         HRSNCategory = "safety"
)

func (c HRSNCategory) IsValid() bool {
	switch c {
	case HRSNHousing, HRSNFood, HRSNFinancial, HRSNTransportation,
		HRSNEmployment, HRSNUtilities, HRSNSafety:
		return true
	}
	return false
}

// SymptomPattern is one phrase from the symptom library. Loaded once per
// run and never mutated afterwards.
type SymptomPattern struct {
	ID        string    `gorm:"column:pattern_id;type:varchar(64);primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PhraseText         string `gorm:"column:phrase_text;type:text;not null"`
	Diagnosis          string `gorm:"column:diagnosis;type:varchar(255)"`
	DiagnosticCategory string `gorm:"column:diagnostic_category;type:varchar(255);index"`

	Kind Kind `gorm:"column:kind;type:varchar(20);not null;index"`

	// HRSNCategory is set only when Kind is KindProblem.
	HRSNCategory HRSNCategory `gorm:"column:hrsn_category;type:varchar(30)"`

	Active bool `gorm:"column:active;default:true;index"`
}

func (SymptomPattern) TableName() string {
	return "clinical.symptom_patterns"
}

// NormalizedPhrase returns the lower-cased phrase used for matching and
// library lookup.
func (p *SymptomPattern) NormalizedPhrase() string {
	return strings.ToLower(strings.TrimSpace(p.PhraseText))
}

// Validate reports why a pattern cannot participate in matching.
func (p *SymptomPattern) Validate() error {
	if p.NormalizedPhrase() == "" {
		return ErrEmptyPhrase
	}
	if !p.Kind.IsValid() {
		return ErrInvalidKind
	}
	if p.Kind == KindProblem && p.HRSNCategory != "" && !p.HRSNCategory.IsValid() {
		return ErrInvalidHRSNCategory
	}
	if p.Kind == KindSymptom && p.HRSNCategory != "" {
		return ErrHRSNOnSymptom
	}
	return nil
}
