package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"locallibrary/internal/util"
	"locallibrary/pkg/domain"
	"locallibrary/pkg/events"
	"locallibrary/pkg/store"
)

// GenreDetail is a genre with the books tagged with it.
type GenreDetail struct {
	Genre domain.Genre
	Books []domain.Book
}

// ListGenres returns every genre ordered by name.
func (a *App) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	genres, err := a.store.ListGenres(ctx)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return genres, nil
}

// GenreDetail loads a genre and its books concurrently.
func (a *App) GenreDetail(ctx context.Context, id string) (GenreDetail, error) {
	var (
		genre domain.Genre
		found bool
		books []domain.Book
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		genre, found, err = a.store.GetGenre(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		books, err = a.store.ListBooksByGenre(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return GenreDetail{}, fmt.Errorf("load genre %s: %w", id, err)
	}
	if !found {
		return GenreDetail{}, ErrGenreNotFound
	}
	return GenreDetail{Genre: genre, Books: books}, nil
}

// CreateGenre returns the genre with the submitted name, creating it when no
// genre has that exact name yet. The store's unique name index settles
// concurrent submissions: the loser returns the winner's row.
func (a *App) CreateGenre(ctx context.Context, form GenreForm) (domain.Genre, error) {
	if err := a.check(form); err != nil {
		return domain.Genre{}, err
	}
	existing, found, err := a.store.GetGenreByName(ctx, form.Name)
	if err != nil {
		return domain.Genre{}, fmt.Errorf("find genre: %w", err)
	}
	if found {
		return existing, nil
	}
	genre := domain.Genre{ID: util.NewID(), Name: form.Name, CreatedAt: now()}
	if err := a.store.CreateGenre(ctx, genre); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			return domain.Genre{}, fmt.Errorf("create genre: %w", err)
		}
		winner, found, lookupErr := a.store.GetGenreByName(ctx, form.Name)
		if lookupErr != nil {
			return domain.Genre{}, fmt.Errorf("find genre: %w", lookupErr)
		}
		if !found {
			return domain.Genre{}, ErrGenreNameConflict
		}
		return winner, nil
	}
	a.publish(ctx, "genre", events.ActionCreated, genre.ID)
	return genre, nil
}
