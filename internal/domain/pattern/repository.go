package pattern

import "context"

type Repository interface {
	ListActive(ctx context.Context) ([]*SymptomPattern, error)
	ReplaceAll(ctx context.Context, patterns []*SymptomPattern) error
}
