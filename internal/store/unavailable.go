package store

import (
	"context"
	"fmt"

	"github.com/starford/quill/internal/models"
)

// Unavailable stands in for a database that failed to open. Every operation
// returns the original open error, so callers keep running and log failures.
type Unavailable struct {
	Err error
}

var _ Store = Unavailable{}

func (u Unavailable) err() error {
	return fmt.Errorf("store: unavailable: %w", u.Err)
}

func (u Unavailable) ListAll(context.Context) ([]models.Note, error) { return nil, u.err() }

func (u Unavailable) Get(context.Context, string) (models.Note, error) {
	return models.Note{}, u.err()
}

func (u Unavailable) Create(context.Context, models.Note) error { return u.err() }

func (u Unavailable) Upsert(context.Context, models.Note) error { return u.err() }

func (u Unavailable) Remove(context.Context, string) error { return u.err() }
