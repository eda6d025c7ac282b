package app

import (
	"context"
	"errors"
	"fmt"

	"locallibrary/internal/util"
	"locallibrary/pkg/domain"
	"locallibrary/pkg/events"
	"locallibrary/pkg/store"
)

// InstanceFormOptions carries the choices the book copy form offers.
type InstanceFormOptions struct {
	Books    []domain.Book
	Statuses []domain.InstanceStatus
}

// ListInstances returns every copy with its book.
func (a *App) ListInstances(ctx context.Context) ([]domain.BookInstance, error) {
	instances, err := a.store.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list book copies: %w", err)
	}
	return instances, nil
}

// InstanceDetail loads one copy with its book.
func (a *App) InstanceDetail(ctx context.Context, id string) (domain.BookInstance, error) {
	bi, found, err := a.store.GetInstance(ctx, id)
	if err != nil {
		return domain.BookInstance{}, fmt.Errorf("load book copy %s: %w", id, err)
	}
	if !found {
		return domain.BookInstance{}, ErrBookCopyNotFound
	}
	return bi, nil
}

// InstanceFormOptions lists the books a copy can belong to, ordered by title.
func (a *App) InstanceFormOptions(ctx context.Context) (InstanceFormOptions, error) {
	books, err := a.store.ListBooks(ctx)
	if err != nil {
		return InstanceFormOptions{}, fmt.Errorf("load copy form options: %w", err)
	}
	return InstanceFormOptions{Books: books, Statuses: domain.InstanceStatuses}, nil
}

// CreateInstance validates form and stores a new copy. An empty status
// becomes Maintenance.
func (a *App) CreateInstance(ctx context.Context, form InstanceForm) (domain.BookInstance, error) {
	if err := a.check(form); err != nil {
		return domain.BookInstance{}, err
	}
	status := domain.InstanceStatus(form.Status)
	if status == "" {
		status = domain.StatusMaintenance
	}
	ts := now()
	bi := domain.BookInstance{
		ID:        util.NewID(),
		BookID:    form.Book,
		Imprint:   form.Imprint,
		Status:    status,
		DueBack:   parseDate(form.DueBack),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := a.store.CreateInstance(ctx, bi); err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			return domain.BookInstance{}, ValidationErrors{{Field: "book", Message: "Book must be an existing book."}}
		}
		return domain.BookInstance{}, fmt.Errorf("create book copy: %w", err)
	}
	a.publish(ctx, "bookinstance", events.ActionCreated, bi.ID)
	return bi, nil
}
