package store

import (
	"context"
	"errors"

	"locallibrary/pkg/domain"
)

var (
	// ErrNotFound is returned by mutations that target a missing row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidReference indicates a referenced author, book or genre does not exist.
	ErrInvalidReference = errors.New("referenced record does not exist")
	// ErrHasDependents indicates a delete was refused because other rows reference the record.
	ErrHasDependents = errors.New("record has dependents")
)

// Store defines persistence operations for the catalog entities.
type Store interface {
	// authors
	ListAuthors(ctx context.Context) ([]domain.Author, error)
	GetAuthor(ctx context.Context, id string) (domain.Author, bool, error)
	CreateAuthor(ctx context.Context, a domain.Author) error
	DeleteAuthor(ctx context.Context, id string) error
	CountAuthors(ctx context.Context) (int64, error)

	// books
	ListBooks(ctx context.Context) ([]domain.Book, error)
	ListBooksByAuthor(ctx context.Context, authorID string) ([]domain.Book, error)
	ListBooksByGenre(ctx context.Context, genreID string) ([]domain.Book, error)
	GetBook(ctx context.Context, id string) (domain.Book, bool, error)
	CreateBook(ctx context.Context, b domain.Book) error
	UpdateBook(ctx context.Context, b domain.Book) error
	CountBooks(ctx context.Context) (int64, error)

	// book instances
	ListInstances(ctx context.Context) ([]domain.BookInstance, error)
	ListInstancesByBook(ctx context.Context, bookID string) ([]domain.BookInstance, error)
	GetInstance(ctx context.Context, id string) (domain.BookInstance, bool, error)
	CreateInstance(ctx context.Context, bi domain.BookInstance) error
	// CountInstances counts copies with the given status; empty status counts all.
	CountInstances(ctx context.Context, status domain.InstanceStatus) (int64, error)

	// genres
	ListGenres(ctx context.Context) ([]domain.Genre, error)
	GetGenre(ctx context.Context, id string) (domain.Genre, bool, error)
	GetGenreByName(ctx context.Context, name string) (domain.Genre, bool, error)
	CreateGenre(ctx context.Context, g domain.Genre) error
	CountGenres(ctx context.Context) (int64, error)

	Close() error
}
