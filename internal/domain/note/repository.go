package note

import "context"

type Repository interface {
	Count(ctx context.Context) (int64, error)
	// List returns notes in stable order, offset/limit paged, so the
	// orchestrator can stream large note sets without loading them all.
	List(ctx context.Context, offset, limit int) ([]*Record, error)
}
