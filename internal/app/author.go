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

// AuthorDetail is an author with the title and summary of each of their books.
type AuthorDetail struct {
	Author domain.Author
	Books  []domain.Book
}

// ListAuthors returns every author ordered by family name.
func (a *App) ListAuthors(ctx context.Context) ([]domain.Author, error) {
	authors, err := a.store.ListAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

// AuthorDetail loads an author and their books concurrently.
func (a *App) AuthorDetail(ctx context.Context, id string) (AuthorDetail, error) {
	detail, found, err := a.loadAuthor(ctx, id)
	if err != nil {
		return AuthorDetail{}, err
	}
	if !found {
		return AuthorDetail{}, ErrAuthorNotFound
	}
	return detail, nil
}

// AuthorForDeletion loads what the delete confirmation shows. found is false
// when the author no longer exists.
func (a *App) AuthorForDeletion(ctx context.Context, id string) (AuthorDetail, bool, error) {
	return a.loadAuthor(ctx, id)
}

// DeleteAuthor removes the author unless books still reference them. When
// deleted is false the returned detail lists the blocking books. A missing
// author counts as deleted.
func (a *App) DeleteAuthor(ctx context.Context, id string) (detail AuthorDetail, deleted bool, err error) {
	detail, found, err := a.loadAuthor(ctx, id)
	if err != nil {
		return AuthorDetail{}, false, err
	}
	if !found {
		return AuthorDetail{}, true, nil
	}
	if len(detail.Books) > 0 {
		return detail, false, nil
	}
	if err := a.store.DeleteAuthor(ctx, id); err != nil {
		if !errors.Is(err, store.ErrHasDependents) {
			return AuthorDetail{}, false, fmt.Errorf("delete author %s: %w", id, err)
		}
		// A book was added after the lookup; show it.
		detail, _, err = a.loadAuthor(ctx, id)
		if err != nil {
			return AuthorDetail{}, false, err
		}
		return detail, false, nil
	}
	a.publish(ctx, "author", events.ActionDeleted, id)
	return AuthorDetail{}, true, nil
}

// CreateAuthor validates form and stores a new author.
func (a *App) CreateAuthor(ctx context.Context, form AuthorForm) (domain.Author, error) {
	if err := a.check(form); err != nil {
		return domain.Author{}, err
	}
	ts := now()
	author := domain.Author{
		ID:         util.NewID(),
		FirstName:  form.FirstName,
		FamilyName: form.FamilyName,
		BornOn:     parseDate(form.DateOfBirth),
		DiedOn:     parseDate(form.DateOfDeath),
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if err := a.store.CreateAuthor(ctx, author); err != nil {
		return domain.Author{}, fmt.Errorf("create author: %w", err)
	}
	a.publish(ctx, "author", events.ActionCreated, author.ID)
	return author, nil
}

func (a *App) loadAuthor(ctx context.Context, id string) (AuthorDetail, bool, error) {
	var (
		author domain.Author
		found  bool
		books  []domain.Book
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		author, found, err = a.store.GetAuthor(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		books, err = a.store.ListBooksByAuthor(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return AuthorDetail{}, false, fmt.Errorf("load author %s: %w", id, err)
	}
	if !found {
		return AuthorDetail{}, false, nil
	}
	return AuthorDetail{Author: author, Books: books}, true, nil
}
