// Package ui implements the note list controller: the note-entry modal state
// machine, delete confirmation, and the rendered note list.
package ui

import (
	"time"

	"github.com/starford/quill/internal/models"
)

// Mode is the state of the note-entry modal.
type Mode int

// Modal states.
const (
	ModeClosed Mode = iota
	ModeCreate
	ModeEdit
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeEdit:
		return "edit"
	default:
		return "closed"
	}
}

// User-visible text.
const (
	PromptConfirmDelete = "Are you sure you want to delete this note?"
	EmptyPlaceholder    = `No notes yet. Click "New Note" to get started!`
)

// View is an immutable snapshot of everything a surface needs to draw.
type View struct {
	Mode      Mode
	EditingID string
	Title     string
	Content   string
	// Prompt is set when the last save was rejected for missing fields.
	Prompt string

	// PendingDelete is the id awaiting confirmation, if any.
	PendingDelete string

	// Notes is the rendered list, most recently modified first.
	Notes []models.Note
	// Loaded is false until the first successful load.
	Loaded bool
}

// Open reports whether the modal is open.
func (v View) Open() bool {
	return v.Mode != ModeClosed
}

// Empty reports whether the placeholder should be shown instead of a list.
func (v View) Empty() bool {
	return len(v.Notes) == 0
}

// FormatTimestamp renders a note timestamp for display, e.g. "Mar 5, 2025, 09:41 AM".
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format("Jan 2, 2006, 03:04 PM")
}

func (v View) clone() View {
	out := v
	out.Notes = append([]models.Note(nil), v.Notes...)
	return out
}
