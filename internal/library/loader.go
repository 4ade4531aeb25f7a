// Package library loads the symptom pattern library from seed files.
// Supported formats: CSV and XLSX, both with a header row. Column
// matching is by normalized header name, so files exported from
// different tools load the same way.
package library

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/carelens/notescan/internal/domain/pattern"
)

var ErrUnsupportedFormat = errors.New("library: unsupported file format")

var headerAliases = map[string]string{
	"pattern_id":          "id",
	"patternid":           "id",
	"id":                  "id",
	"phrase":              "phrase",
	"phrase_text":         "phrase",
	"phrasetext":          "phrase",
	"symptom_segment":     "phrase",
	"diagnosis":           "diagnosis",
	"diagnostic_category": "category",
	"diagnosticcategory":  "category",
	"category":            "category",
	"kind":                "kind",
	"symp_prob":           "kind",
	"type":                "kind",
	"hrsn_category":       "hrsn",
	"hrsncategory":        "hrsn",
	"hrsn":                "hrsn",
}

// Loader reads pattern seed files into validated libraries.
type Loader struct {
	log *zap.Logger
}

func NewLoader(log *zap.Logger) *Loader {
	return &Loader{log: log}
}

// LoadFile dispatches on the file extension. A library with no usable
// patterns is fatal; individually malformed rows are skipped with
// warnings.
func (l *Loader) LoadFile(path string) (*pattern.Library, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return l.loadCSV(path)
	case ".xlsx":
		return l.loadXLSX(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

func (l *Loader) loadCSV(path string) (*pattern.Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening library file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading library header: %w", err)
	}
	cols := mapHeader(header)

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading library row: %w", err)
		}
		rows = append(rows, record)
	}

	return l.assemble(cols, rows)
}

func (l *Loader) loadXLSX(path string) (*pattern.Library, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening library workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, pattern.ErrEmptyLibrary
	}

	cols := mapHeader(rows[0])
	return l.assemble(cols, rows[1:])
}

// mapHeader resolves header names to canonical column roles.
func mapHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if role, ok := headerAliases[key]; ok {
			if _, taken := cols[role]; !taken {
				cols[role] = i
			}
		}
	}
	return cols
}

func (l *Loader) assemble(cols map[string]int, rows [][]string) (*pattern.Library, error) {
	if _, ok := cols["phrase"]; !ok {
		return nil, errors.New("library: no phrase column in header")
	}

	cell := func(row []string, role string) string {
		idx, ok := cols[role]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	patterns := make([]*pattern.SymptomPattern, 0, len(rows))
	for i, row := range rows {
		p := &pattern.SymptomPattern{
			ID:                 cell(row, "id"),
			PhraseText:         cell(row, "phrase"),
			Diagnosis:          cell(row, "diagnosis"),
			DiagnosticCategory: cell(row, "category"),
			Kind:               parseKind(cell(row, "kind")),
			HRSNCategory:       pattern.HRSNCategory(strings.ToLower(cell(row, "hrsn"))),
			Active:             true,
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("row-%d", i+2) // 1-based, after the header
		}
		patterns = append(patterns, p)
	}

	lib, err := pattern.NewLibrary(patterns)
	if err != nil {
		return nil, err
	}

	for _, w := range lib.Warnings() {
		l.log.Warn("skipping library row",
			zap.String("pattern_id", w.PatternID),
			zap.String("phrase", w.Phrase),
			zap.Error(w.Reason),
		)
	}

	l.log.Info("symptom library loaded",
		zap.Int("patterns", lib.Len()),
		zap.Int("skipped", len(lib.Warnings())),
	)

	return lib, nil
}

func parseKind(raw string) pattern.Kind {
	switch strings.ToLower(raw) {
	case "problem", "prob":
		return pattern.KindProblem
	case "symptom", "symp", "":
		// Kind defaults to symptom; the HRSN flag path requires an
		// explicit problem marker.
		return pattern.KindSymptom
	}
	return pattern.Kind(strings.ToLower(raw))
}
