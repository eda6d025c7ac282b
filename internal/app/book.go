package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"locallibrary/internal/util"
	"locallibrary/pkg/domain"
	"locallibrary/pkg/events"
	"locallibrary/pkg/storage"
	"locallibrary/pkg/store"
)

// BookDetail is a book with its copies and, when stored, a temporary cover URL.
type BookDetail struct {
	Book      domain.Book
	Instances []domain.BookInstance
	CoverURL  string
}

// GenreOption is a genre checkbox on the book form.
type GenreOption struct {
	domain.Genre
	Checked bool
}

// BookFormOptions carries the choices the book form offers.
type BookFormOptions struct {
	Authors []domain.Author
	Genres  []GenreOption
}

// Upload is an optional cover image submitted with a book.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Index counts every entity concurrently. Any failed count fails the page.
func (a *App) Index(ctx context.Context) (domain.Counts, error) {
	var c domain.Counts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { c.Books, err = a.store.CountBooks(gctx); return })
	g.Go(func() (err error) { c.Instances, err = a.store.CountInstances(gctx, ""); return })
	g.Go(func() (err error) {
		c.AvailableInstances, err = a.store.CountInstances(gctx, domain.StatusAvailable)
		return
	})
	g.Go(func() (err error) { c.Authors, err = a.store.CountAuthors(gctx); return })
	g.Go(func() (err error) { c.Genres, err = a.store.CountGenres(gctx); return })
	if err := g.Wait(); err != nil {
		return domain.Counts{}, fmt.Errorf("count catalog: %w", err)
	}
	return c, nil
}

// ListBooks returns all books ordered by title with their authors.
func (a *App) ListBooks(ctx context.Context) ([]domain.Book, error) {
	books, err := a.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// BookDetail loads a book and its copies concurrently.
func (a *App) BookDetail(ctx context.Context, id string) (BookDetail, error) {
	var (
		book      domain.Book
		found     bool
		instances []domain.BookInstance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		book, found, err = a.store.GetBook(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		instances, err = a.store.ListInstancesByBook(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return BookDetail{}, fmt.Errorf("load book %s: %w", id, err)
	}
	if !found {
		return BookDetail{}, ErrBookNotFound
	}
	detail := BookDetail{Book: book, Instances: instances}
	if a.objects != nil && book.CoverKey != "" {
		url, err := a.objects.PresignGet(ctx, book.CoverKey, a.presignExpiry)
		if err != nil {
			util.LoggerFromContext(ctx).Warn("presign cover failed", "book_id", id, "err", err)
		} else {
			detail.CoverURL = url
		}
	}
	return detail, nil
}

// BookFormOptions loads authors and genres for the book form, checking the
// genres already selected in form.
func (a *App) BookFormOptions(ctx context.Context, form BookForm) (BookFormOptions, error) {
	var (
		authors []domain.Author
		genres  []domain.Genre
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		authors, err = a.store.ListAuthors(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		genres, err = a.store.ListGenres(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return BookFormOptions{}, fmt.Errorf("load book form options: %w", err)
	}
	return BookFormOptions{Authors: authors, Genres: genreOptions(genres, form.Genres)}, nil
}

// BookForEdit loads a book as a pre-filled form plus the form options.
func (a *App) BookForEdit(ctx context.Context, id string) (BookForm, BookFormOptions, error) {
	var (
		book    domain.Book
		found   bool
		authors []domain.Author
		genres  []domain.Genre
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		book, found, err = a.store.GetBook(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		authors, err = a.store.ListAuthors(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		genres, err = a.store.ListGenres(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return BookForm{}, BookFormOptions{}, fmt.Errorf("load book %s for edit: %w", id, err)
	}
	if !found {
		return BookForm{}, BookFormOptions{}, ErrBookNotFound
	}
	form := bookFormFromBook(book)
	return form, BookFormOptions{Authors: authors, Genres: genreOptions(genres, form.Genres)}, nil
}

// CreateBook validates form, stores the optional cover, then the book with
// its genre set.
func (a *App) CreateBook(ctx context.Context, form BookForm, cover *Upload) (domain.Book, error) {
	if err := a.checkBook(form, cover); err != nil {
		return domain.Book{}, err
	}
	ts := now()
	book := bookFromForm(util.NewID(), form)
	book.CreatedAt, book.UpdatedAt = ts, ts
	coverKey, err := a.storeCover(ctx, book.ID, cover)
	if err != nil {
		return domain.Book{}, err
	}
	book.CoverKey = coverKey
	if err := a.store.CreateBook(ctx, book); err != nil {
		a.discardCover(ctx, coverKey)
		return domain.Book{}, a.bookWriteError(ctx, "create book", form, err)
	}
	a.publish(ctx, "book", events.ActionCreated, book.ID)
	return book, nil
}

// UpdateBook validates form and rewrites book id in place, replacing its
// genre set. A new cover replaces the stored one.
func (a *App) UpdateBook(ctx context.Context, id string, form BookForm, cover *Upload) (domain.Book, error) {
	if err := a.checkBook(form, cover); err != nil {
		return domain.Book{}, err
	}
	var previousCover string
	if cover != nil && a.objects != nil {
		existing, found, err := a.store.GetBook(ctx, id)
		if err != nil {
			return domain.Book{}, fmt.Errorf("load book %s: %w", id, err)
		}
		if !found {
			return domain.Book{}, ErrBookNotFound
		}
		previousCover = existing.CoverKey
	}
	book := bookFromForm(id, form)
	book.UpdatedAt = now()
	coverKey, err := a.storeCover(ctx, id, cover)
	if err != nil {
		return domain.Book{}, err
	}
	book.CoverKey = coverKey
	if err := a.store.UpdateBook(ctx, book); err != nil {
		a.discardCover(ctx, coverKey)
		if errors.Is(err, store.ErrNotFound) {
			return domain.Book{}, ErrBookNotFound
		}
		return domain.Book{}, a.bookWriteError(ctx, "update book", form, err)
	}
	if coverKey != "" && previousCover != "" && previousCover != coverKey {
		a.discardCover(ctx, previousCover)
	}
	a.publish(ctx, "book", events.ActionUpdated, id)
	return book, nil
}

func (a *App) checkBook(form BookForm, cover *Upload) error {
	err := a.check(form)
	var fieldErrs ValidationErrors
	if err != nil && !errors.As(err, &fieldErrs) {
		return err
	}
	if cover != nil && a.objects != nil && !isImage(cover) {
		fieldErrs = append(fieldErrs, FieldError{Field: "cover", Message: "Cover must be an image."})
	}
	if len(fieldErrs) > 0 {
		return fieldErrs
	}
	return nil
}

// bookWriteError turns a rejected reference into a form error on the
// offending field.
func (a *App) bookWriteError(ctx context.Context, op string, form BookForm, err error) error {
	if !errors.Is(err, store.ErrInvalidReference) {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, found, lookupErr := a.store.GetAuthor(ctx, form.Author)
	if lookupErr != nil {
		return fmt.Errorf("%s: %w", op, lookupErr)
	}
	if !found {
		return ValidationErrors{{Field: "author", Message: "Author must be an existing author."}}
	}
	return ValidationErrors{{Field: "genre", Message: "Genre selection contains an unknown genre."}}
}

func (a *App) storeCover(ctx context.Context, bookID string, cover *Upload) (string, error) {
	if cover == nil || a.objects == nil {
		return "", nil
	}
	key := storage.CoverKey(bookID, cover.Filename)
	if err := a.objects.Put(ctx, key, cover.Body, cover.Size, coverContentType(cover)); err != nil {
		return "", fmt.Errorf("store cover: %w", err)
	}
	return key, nil
}

func (a *App) discardCover(ctx context.Context, key string) {
	if key == "" || a.objects == nil {
		return
	}
	if err := a.objects.Delete(ctx, key); err != nil {
		util.LoggerFromContext(ctx).Warn("delete cover failed", "key", key, "err", err)
	}
}

func coverContentType(u *Upload) string {
	if ct := strings.TrimSpace(u.ContentType); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(u.Filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func isImage(u *Upload) bool {
	return strings.HasPrefix(coverContentType(u), "image/")
}

func bookFromForm(id string, form BookForm) domain.Book {
	genres := lo.Map(form.Genres, func(gid string, _ int) domain.Genre { return domain.Genre{ID: gid} })
	return domain.Book{
		ID:       id,
		Title:    form.Title,
		AuthorID: form.Author,
		Summary:  form.Summary,
		ISBN:     form.ISBN,
		Genres:   genres,
	}
}

func genreOptions(genres []domain.Genre, selected []string) []GenreOption {
	return lo.Map(genres, func(g domain.Genre, _ int) GenreOption {
		return GenreOption{Genre: g, Checked: lo.Contains(selected, g.ID)}
	})
}
