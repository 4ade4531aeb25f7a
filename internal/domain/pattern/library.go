package pattern

// LibraryWarning records one pattern that was skipped during library
// assembly, with the reason.
type LibraryWarning struct {
	PatternID string
	Phrase    string
	Reason    error
}

// Library is the validated, deduplicated set of patterns backing one
// extraction run. Lookup is by normalized (lower-cased) phrase text.
type Library struct {
	patterns []*SymptomPattern
	byPhrase map[string]*SymptomPattern
	warnings []LibraryWarning
}

// NewLibrary validates the given patterns and keeps the usable ones.
// Malformed entries are skipped and reported as warnings rather than
// failing the whole build; an empty result is ErrEmptyLibrary.
func NewLibrary(patterns []*SymptomPattern) (*Library, error) {
	lib := &Library{
		byPhrase: make(map[string]*SymptomPattern, len(patterns)),
	}

	for _, p := range patterns {
		if err := p.Validate(); err != nil {
			lib.warnings = append(lib.warnings, LibraryWarning{
				PatternID: p.ID,
				Phrase:    p.PhraseText,
				Reason:    err,
			})
			continue
		}
		key := p.NormalizedPhrase()
		if _, dup := lib.byPhrase[key]; dup {
			lib.warnings = append(lib.warnings, LibraryWarning{
				PatternID: p.ID,
				Phrase:    p.PhraseText,
				Reason:    ErrDuplicatePhrase,
			})
			continue
		}
		lib.byPhrase[key] = p
		lib.patterns = append(lib.patterns, p)
	}

	if len(lib.patterns) == 0 {
		return nil, ErrEmptyLibrary
	}

	return lib, nil
}

// Patterns returns the usable patterns in insertion order.
func (l *Library) Patterns() []*SymptomPattern {
	return l.patterns
}

// ByPhrase looks a pattern up by its normalized phrase text.
func (l *Library) ByPhrase(normalized string) (*SymptomPattern, bool) {
	p, ok := l.byPhrase[normalized]
	return p, ok
}

// Warnings returns the entries skipped during assembly.
func (l *Library) Warnings() []LibraryWarning {
	return l.warnings
}

func (l *Library) Len() int {
	return len(l.patterns)
}
