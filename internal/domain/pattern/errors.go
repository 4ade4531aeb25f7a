package pattern

import "errors"

var (
	ErrEmptyPhrase         = errors.New("pattern phrase is empty")
	ErrInvalidKind         = errors.New("pattern kind must be symptom or problem")
	ErrInvalidHRSNCategory = errors.New("unknown HRSN category")
	ErrHRSNOnSymptom       = errors.New("HRSN category is only valid on problem patterns")
	ErrDuplicatePhrase     = errors.New("phrase already present in library")
	ErrEmptyLibrary        = errors.New("symptom library contains no usable patterns")
)
