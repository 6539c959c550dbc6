package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidNote = errors.New("invalid note")
	ErrConflict    = errors.New("conflict")
)
