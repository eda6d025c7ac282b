package app

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the base for every missing-entity error; match it with errors.Is.
	ErrNotFound          = errors.New("not found")
	ErrAuthorNotFound    = fmt.Errorf("author %w", ErrNotFound)
	ErrBookNotFound      = fmt.Errorf("book %w", ErrNotFound)
	ErrBookCopyNotFound  = fmt.Errorf("book copy %w", ErrNotFound)
	ErrGenreNotFound     = fmt.Errorf("genre %w", ErrNotFound)
	ErrConflict          = errors.New("conflict")
	ErrGenreNameConflict = fmt.Errorf("genre name changed concurrently: %w", ErrConflict)
	ErrNotImplemented    = errors.New("not implemented")
)
