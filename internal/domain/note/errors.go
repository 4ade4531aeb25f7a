package note

import "errors"

var (
	ErrMissingPatientID = errors.New("note has no patient id")
	ErrNoteTooShort     = errors.New("note text is below the minimum length")
)
