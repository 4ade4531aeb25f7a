package status

import "errors"

var (
	ErrStatusNotFound    = errors.New("processing status not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
