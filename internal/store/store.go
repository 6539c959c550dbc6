package store

import (
	"context"

	"github.com/starford/quill/internal/models"
)

// Store defines the persistence operations for notes.
// Consumers should depend on this interface rather than the concrete *DB type.
type Store interface {
	ListAll(ctx context.Context) ([]models.Note, error)
	Get(ctx context.Context, id string) (models.Note, error)
	Create(ctx context.Context, n models.Note) error
	Upsert(ctx context.Context, n models.Note) error
	Remove(ctx context.Context, id string) error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
