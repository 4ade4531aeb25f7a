// Package extract turns automaton matches over a clinical note into
// validated mention records.
package extract

import (
	"fmt"

	"github.com/carelens/notescan/internal/automaton"
	"github.com/carelens/notescan/internal/domain/mention"
	"github.com/carelens/notescan/internal/domain/note"
	"github.com/carelens/notescan/internal/domain/pattern"
)

// BuildAutomaton registers every usable library pattern and builds the
// matcher. The result is read-only and shared across all notes in a run.
func BuildAutomaton(lib *pattern.Library) (*automaton.Automaton[*pattern.SymptomPattern], error) {
	ac := automaton.New[*pattern.SymptomPattern]()
	for _, p := range lib.Patterns() {
		if err := ac.AddPattern(p.NormalizedPhrase(), p); err != nil {
			return nil, fmt.Errorf("registering pattern %s: %w", p.ID, err)
		}
	}
	ac.Build()
	return ac, nil
}

// Engine extracts mentions from one note at a time against a shared,
// already-built automaton.
type Engine struct {
	ac *automaton.Automaton[*pattern.SymptomPattern]
}

// NewEngine wraps a built automaton. An unbuilt automaton is a
// programming error and rejected up front.
func NewEngine(ac *automaton.Automaton[*pattern.SymptomPattern]) (*Engine, error) {
	if !ac.Built() {
		return nil, automaton.ErrNotBuilt
	}
	return &Engine{ac: ac}, nil
}

type dedupKey struct {
	patternID string
	position  int
}

// ExtractNote scans one note and returns a mention per occurrence.
//
// Hits are deduplicated by (pattern, position) within the note; the
// same phrase at two different offsets stays two mentions, since
// repeated symptom mentions carry clinical significance. A note with
// zero matches yields an empty list.
//
// Callers are expected to have validated the note (non-empty text,
// patient id present); this is not re-checked per note.
func (e *Engine) ExtractNote(n *note.Record) ([]*mention.Mention, error) {
	matches, err := e.ac.Search(n.Text)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	seen := make(map[dedupKey]struct{}, len(matches))
	mentions := make([]*mention.Mention, 0, len(matches))

	for _, m := range matches {
		key := dedupKey{patternID: m.Payload.ID, position: m.Position}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		mentions = append(mentions, mention.New(n.PatientID, n.DateOfService, m.Payload, m.Position))
	}

	return mentions, nil
}
