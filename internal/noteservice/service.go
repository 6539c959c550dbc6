// Package noteservice holds the note rules shared by every surface:
// validation, id minting, timestamping and ordering.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/store"
)

// PromptMissingFields is shown when a save is attempted without a title or content.
const PromptMissingFields = "Please enter both a title and content for your note."

// Service coordinates note rules with the persistence adapter.
type Service struct {
	store store.Store
	now   func() time.Time

	mu     sync.Mutex
	lastID int64
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new note service.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noteInput struct {
	Title   string
	Content string
}

func (in noteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Content, validation.Required),
	)
}

// Validate reports apperr.ErrInvalidNote unless both title and content are
// non-empty after trimming.
func Validate(title, content string) error {
	in := noteInput{Title: strings.TrimSpace(title), Content: strings.TrimSpace(content)}
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidNote, err.Error())
	}
	return nil
}

// IsInvalid reports whether err is a validation failure.
func IsInvalid(err error) bool {
	return errors.Is(err, apperr.ErrInvalidNote)
}

// Save validates and writes a note. An empty id creates a note with a freshly
// minted id; otherwise the note with that id is fully replaced.
func (s *Service) Save(ctx context.Context, id, title, content string) (models.Note, error) {
	if err := Validate(title, content); err != nil {
		return models.Note{}, err
	}
	n := models.Note{
		ID:        id,
		Title:     strings.TrimSpace(title),
		Content:   strings.TrimSpace(content),
		Timestamp: s.now().UnixMilli(),
	}
	if id != "" {
		if err := s.store.Upsert(ctx, n); err != nil {
			return models.Note{}, err
		}
		return n, nil
	}
	return s.create(ctx, n)
}

// maxCreateAttempts bounds id bumping when other processes hold the minted ids.
const maxCreateAttempts = 64

// create inserts n under a fresh id. Another process sharing the database may
// already hold a minted id; the id is then bumped until the insert succeeds.
func (s *Service) create(ctx context.Context, n models.Note) (models.Note, error) {
	next := n.Timestamp
	for range maxCreateAttempts {
		n.ID = s.mintID(next)
		err := s.store.Create(ctx, n)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return models.Note{}, err
		}
		id, _ := strconv.ParseInt(n.ID, 10, 64)
		next = id + 1
	}
	return models.Note{}, fmt.Errorf("noteservice: no free id after %d attempts: %w", maxCreateAttempts, apperr.ErrConflict)
}

// Import writes a note that was created elsewhere, keeping its id and
// timestamp when set. Missing ones are minted as for Save.
func (s *Service) Import(ctx context.Context, n models.Note) (models.Note, error) {
	if err := Validate(n.Title, n.Content); err != nil {
		return models.Note{}, err
	}
	if n.Timestamp == 0 {
		n.Timestamp = s.now().UnixMilli()
	}
	n.Title = strings.TrimSpace(n.Title)
	n.Content = strings.TrimSpace(n.Content)
	if n.ID == "" {
		return s.create(ctx, n)
	}
	if err := s.store.Upsert(ctx, n); err != nil {
		return models.Note{}, err
	}
	return n, nil
}

// Delete permanently removes the note with id. Missing ids are not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Remove(ctx, id)
}

// Get returns a single note or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (models.Note, error) {
	return s.store.Get(ctx, id)
}

// List returns every note, most recently modified first.
func (s *Service) List(ctx context.Context) ([]models.Note, error) {
	notes, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(notes)
	return notes, nil
}

// SortNewestFirst orders notes by timestamp descending, breaking ties by id
// descending so output is stable.
func SortNewestFirst(notes []models.Note) {
	slices.SortFunc(notes, func(a, b models.Note) int {
		if a.Timestamp != b.Timestamp {
			if a.Timestamp > b.Timestamp {
				return -1
			}
			return 1
		}
		return strings.Compare(b.ID, a.ID)
	})
}

// mintID derives an id from the creation time in milliseconds. Within one
// process ids never repeat: a millisecond already handed out is bumped.
func (s *Service) mintID(nowMillis int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nowMillis <= s.lastID {
		nowMillis = s.lastID + 1
	}
	s.lastID = nowMillis
	return strconv.FormatInt(nowMillis, 10)
}
