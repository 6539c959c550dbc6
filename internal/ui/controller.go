package ui

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/noteservice"
)

var (
	ErrModalClosed     = errors.New("ui: modal is closed")
	ErrSaveInFlight    = errors.New("ui: save already in progress")
	ErrNoPendingDelete = errors.New("ui: no delete awaiting confirmation")
	ErrClosed          = errors.New("ui: controller closed")
)

// Service is the subset of the note service the controller drives.
type Service interface {
	List(ctx context.Context) ([]models.Note, error)
	Save(ctx context.Context, id, title, content string) (models.Note, error)
	Delete(ctx context.Context, id string) error
}

type command struct {
	fn    func(st *state, reply chan<- error)
	reply chan error
}

// state is owned by the controller loop goroutine.
type state struct {
	view View

	// modalGen changes every time a modal is opened so that a save
	// completing late never closes a modal the user opened afterwards.
	modalGen uint64
	saving   bool

	loadSeq     uint64
	appliedSeq  uint64
	loadWaiters map[uint64][]chan<- error
}

// Controller mediates user interactions and store operations.
//
// Concurrency model: a single loop goroutine owns all UI state. Public methods
// post commands to the loop and wait for a reply. Store operations run on
// their own goroutines and post their completions back to the loop, so other
// commands are handled while they are in flight. Every load carries a
// sequence number and only a load newer than the last rendered one is applied.
type Controller struct {
	svc Service
	log *slog.Logger

	cmdCh  chan command
	doneCh chan func(*state)

	opCtx     context.Context
	cancelOps context.CancelFunc

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New creates a controller and starts its loop. Call Reload to render the
// initial list and Close to stop it.
func New(svc Service, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	opCtx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		svc:       svc,
		log:       logger,
		cmdCh:     make(chan command),
		doneCh:    make(chan func(*state), 64),
		opCtx:     opCtx,
		cancelOps: cancel,
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.stopped)

	st := &state{loadWaiters: make(map[uint64][]chan<- error)}

	for {
		select {
		case <-c.stopCh:
			for seq, waiters := range st.loadWaiters {
				for _, w := range waiters {
					w <- ErrClosed
				}
				delete(st.loadWaiters, seq)
			}
			return

		case cmd := <-c.cmdCh:
			cmd.fn(st, cmd.reply)

		case fn := <-c.doneCh:
			fn(st)
		}
	}
}

// Close stops the loop and cancels in-flight store operations.
func (c *Controller) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.cancelOps()
		close(c.stopCh)
	}
	<-c.stopped
}

// do runs fn on the loop and waits until fn, or a completion it scheduled,
// sends on reply.
func (c *Controller) do(ctx context.Context, fn func(st *state, reply chan<- error)) error {
	if c.closed.Load() {
		return ErrClosed
	}
	reply := make(chan error, 1)
	select {
	case c.cmdCh <- command{fn: fn, reply: reply}:
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands a completion to the loop.
func (c *Controller) post(fn func(*state)) {
	select {
	case c.doneCh <- fn:
	case <-c.stopped:
	}
}

// View returns a snapshot of the current UI state.
func (c *Controller) View(ctx context.Context) (View, error) {
	var v View
	err := c.do(ctx, func(st *state, reply chan<- error) {
		v = st.view.clone()
		reply <- nil
	})
	return v, err
}

// Reload fetches the full note set and re-renders the list. It returns once
// its own load has completed.
func (c *Controller) Reload(ctx context.Context) error {
	return c.do(ctx, func(st *state, reply chan<- error) {
		c.startLoad(st, reply)
	})
}

// OpenCreate opens an empty modal for a new note.
func (c *Controller) OpenCreate(ctx context.Context) error {
	return c.do(ctx, func(st *state, reply chan<- error) {
		st.openModal(ModeCreate, models.Note{})
		reply <- nil
	})
}

// OpenEdit opens the modal pre-populated with the rendered note id.
func (c *Controller) OpenEdit(ctx context.Context, id string) error {
	return c.do(ctx, func(st *state, reply chan<- error) {
		for _, n := range st.view.Notes {
			if n.ID == id {
				st.openModal(ModeEdit, n)
				reply <- nil
				return
			}
		}
		reply <- apperr.ErrNotFound
	})
}

// Cancel closes the modal and discards its input. Cancelling a closed modal
// does nothing.
func (c *Controller) Cancel(ctx context.Context) error {
	return c.do(ctx, func(st *state, reply chan<- error) {
		st.closeModal()
		reply <- nil
	})
}

// Save writes the modal's note. With a missing title or content the save is
// rejected, View().Prompt is set and the modal stays open. On success the
// modal closes and Save returns after the list has been reloaded.
func (c *Controller) Save(ctx context.Context, title, content string) error {
	return c.do(ctx, func(st *state, reply chan<- error) {
		if st.view.Mode == ModeClosed {
			reply <- ErrModalClosed
			return
		}
		if st.saving {
			reply <- ErrSaveInFlight
			return
		}
		st.view.Title, st.view.Content = title, content
		if err := noteservice.Validate(title, content); err != nil {
			st.view.Prompt = noteservice.PromptMissingFields
			reply <- err
			return
		}
		st.view.Prompt = ""
		st.saving = true

		id, gen := st.view.EditingID, st.modalGen
		go func() {
			_, err := c.svc.Save(c.opCtx, id, title, content)
			c.post(func(st *state) {
				if st.modalGen == gen {
					st.saving = false
				}
				if err != nil {
					c.log.Error("save note failed", slog.String("id", id), slog.String("error", err.Error()))
					reply <- err
					return
				}
				if st.modalGen == gen {
					st.closeModal()
				}
				c.startLoad(st, reply)
			})
		}()
	})
}

// RequestDelete asks for confirmation before deleting id.
func (c *Controller) RequestDelete(ctx context.Context, id string) error {
	return c.do(ctx, func(st *state, reply chan<- error) {
		st.view.PendingDelete = id
		reply <- nil
	})
}

// DismissDelete drops a pending delete without touching the store.
func (c *Controller) DismissDelete(ctx context.Context) error {
	return c.do(ctx, func(st *state, reply chan<- error) {
		st.view.PendingDelete = ""
		reply <- nil
	})
}

// ConfirmDelete removes the note awaiting confirmation and returns after the
// list has been reloaded.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	return c.do(ctx, func(st *state, reply chan<- error) {
		id := st.view.PendingDelete
		if id == "" {
			reply <- ErrNoPendingDelete
			return
		}
		st.view.PendingDelete = ""
		go func() {
			err := c.svc.Delete(c.opCtx, id)
			c.post(func(st *state) {
				if err != nil {
					c.log.Error("delete note failed", slog.String("id", id), slog.String("error", err.Error()))
					reply <- err
					return
				}
				c.startLoad(st, reply)
			})
		}()
	})
}

// startLoad issues a new load. reply, if non-nil, receives the load's result.
func (c *Controller) startLoad(st *state, reply chan<- error) {
	st.loadSeq++
	seq := st.loadSeq
	if reply != nil {
		st.loadWaiters[seq] = append(st.loadWaiters[seq], reply)
	}
	go func() {
		notes, err := c.svc.List(c.opCtx)
		c.post(func(st *state) {
			c.finishLoad(st, seq, notes, err)
		})
	}()
}

func (c *Controller) finishLoad(st *state, seq uint64, notes []models.Note, err error) {
	waiters := st.loadWaiters[seq]
	delete(st.loadWaiters, seq)
	defer func() {
		for _, w := range waiters {
			w <- err
		}
	}()

	if err != nil {
		c.log.Error("load notes failed", slog.Uint64("seq", seq), slog.String("error", err.Error()))
		return
	}
	if seq <= st.appliedSeq {
		c.log.Debug("discarding stale load", slog.Uint64("seq", seq), slog.Uint64("applied", st.appliedSeq))
		return
	}
	noteservice.SortNewestFirst(notes)
	if notes == nil {
		notes = []models.Note{}
	}
	st.appliedSeq = seq
	st.view.Notes = notes
	st.view.Loaded = true
}

func (st *state) openModal(mode Mode, n models.Note) {
	st.modalGen++
	st.saving = false
	st.view.Mode = mode
	st.view.EditingID = n.ID
	st.view.Title = n.Title
	st.view.Content = n.Content
	st.view.Prompt = ""
}

func (st *state) closeModal() {
	st.saving = false
	st.view.Mode = ModeClosed
	st.view.EditingID = ""
	st.view.Title = ""
	st.view.Content = ""
	st.view.Prompt = ""
}
