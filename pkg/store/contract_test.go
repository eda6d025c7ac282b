package store

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"locallibrary/pkg/domain"
)

func mustDo(t *testing.T, what string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}

func wantErr(t *testing.T, what string, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("%s: err = %v, want %v", what, err, target)
	}
}

func wantCount(t *testing.T, what string, n int64, err error, want int64) {
	t.Helper()
	if err != nil {
		t.Fatalf("count %s: %v", what, err)
	}
	if n != want {
		t.Fatalf("count %s = %d, want %d", what, n, want)
	}
}

// testStoreContract exercises the behaviour every Store implementation must share.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	born := time.Date(1920, 1, 2, 0, 0, 0, 0, time.UTC)
	died := time.Date(1992, 4, 6, 0, 0, 0, 0, time.UTC)
	mustDo(t, "create bova", s.CreateAuthor(ctx, domain.Author{ID: "a-bova", FirstName: "Ben", FamilyName: "Bova"}))
	mustDo(t, "create asimov", s.CreateAuthor(ctx, domain.Author{ID: "a-asimov", FirstName: "Isaac", FamilyName: "Asimov", BornOn: &born, DiedOn: &died}))

	authors, err := s.ListAuthors(ctx)
	mustDo(t, "list authors", err)
	if len(authors) != 2 || authors[0].FamilyName != "Asimov" || authors[1].FamilyName != "Bova" {
		t.Fatalf("authors = %+v, want Asimov then Bova", authors)
	}

	asimov, ok, err := s.GetAuthor(ctx, "a-asimov")
	if err != nil || !ok {
		t.Fatalf("get asimov: ok=%v err=%v", ok, err)
	}
	if got := domain.FormatDate(asimov.BornOn); got != "1920-01-02" {
		t.Fatalf("born on = %q", got)
	}
	if got := domain.FormatDate(asimov.DiedOn); got != "1992-04-06" {
		t.Fatalf("died on = %q", got)
	}
	bova, ok, err := s.GetAuthor(ctx, "a-bova")
	if err != nil || !ok {
		t.Fatalf("get bova: ok=%v err=%v", ok, err)
	}
	if bova.BornOn != nil {
		t.Fatalf("bova born on = %v, want nil", bova.BornOn)
	}

	if _, ok, err = s.GetAuthor(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing author: ok=%v err=%v", ok, err)
	}

	// genres
	mustDo(t, "create scifi", s.CreateGenre(ctx, domain.Genre{ID: "g-scifi", Name: "Science Fiction"}))
	mustDo(t, "create fantasy", s.CreateGenre(ctx, domain.Genre{ID: "g-fantasy", Name: "Fantasy"}))
	wantErr(t, "duplicate genre name", s.CreateGenre(ctx, domain.Genre{ID: "g-dup", Name: "Fantasy"}), ErrDuplicate)

	genres, err := s.ListGenres(ctx)
	mustDo(t, "list genres", err)
	if len(genres) != 2 || genres[0].Name != "Fantasy" {
		t.Fatalf("genres = %+v, want Fantasy first of 2", genres)
	}

	found, ok, err := s.GetGenreByName(ctx, "Science Fiction")
	if err != nil || !ok || found.ID != "g-scifi" {
		t.Fatalf("genre by name = %+v ok=%v err=%v", found, ok, err)
	}
	if _, ok, err = s.GetGenreByName(ctx, "science fiction"); err != nil || ok {
		t.Fatalf("genre name lookup must be case-sensitive: ok=%v err=%v", ok, err)
	}

	// books
	mustDo(t, "create foundation", s.CreateBook(ctx, domain.Book{
		ID: "b-foundation", Title: "Foundation", AuthorID: "a-asimov", Summary: "Psychohistory.", ISBN: "9780553293357",
		Genres: []domain.Genre{{ID: "g-scifi"}},
	}))
	mustDo(t, "create mars", s.CreateBook(ctx, domain.Book{
		ID: "b-mars", Title: "Mars", AuthorID: "a-bova", Summary: "Red planet.", ISBN: "9780553562415",
	}))
	wantErr(t, "book with unknown author",
		s.CreateBook(ctx, domain.Book{ID: "b-x", Title: "X", AuthorID: "nobody", Summary: "s", ISBN: "i"}), ErrInvalidReference)
	wantErr(t, "book with unknown genre", s.CreateBook(ctx, domain.Book{
		ID: "b-y", Title: "Y", AuthorID: "a-bova", Summary: "s", ISBN: "i", Genres: []domain.Genre{{ID: "g-missing"}},
	}), ErrInvalidReference)

	book, ok, err := s.GetBook(ctx, "b-foundation")
	if err != nil || !ok {
		t.Fatalf("get foundation: ok=%v err=%v", ok, err)
	}
	if book.Author == nil || book.Author.Name() != "Asimov, Isaac" {
		t.Fatalf("book author = %+v", book.Author)
	}
	if got := book.GenreIDs(); !slices.Equal(got, []string{"g-scifi"}) {
		t.Fatalf("book genres = %v", got)
	}

	mars, ok, err := s.GetBook(ctx, "b-mars")
	if err != nil || !ok {
		t.Fatalf("get mars: ok=%v err=%v", ok, err)
	}
	if len(mars.Genres) != 0 {
		t.Fatalf("mars genres = %v, want none", mars.GenreIDs())
	}

	books, err := s.ListBooks(ctx)
	mustDo(t, "list books", err)
	if len(books) != 2 || books[0].Title != "Foundation" {
		t.Fatalf("books = %+v, want Foundation first of 2", books)
	}
	if books[0].Author == nil || books[0].Author.FamilyName != "Asimov" {
		t.Fatalf("listed book author = %+v", books[0].Author)
	}

	byAuthor, err := s.ListBooksByAuthor(ctx, "a-asimov")
	mustDo(t, "books by author", err)
	if len(byAuthor) != 1 || byAuthor[0].Title != "Foundation" || byAuthor[0].Summary != "Psychohistory." {
		t.Fatalf("books by author = %+v", byAuthor)
	}

	byGenre, err := s.ListBooksByGenre(ctx, "g-scifi")
	mustDo(t, "books by genre", err)
	if len(byGenre) != 1 || byGenre[0].ID != "b-foundation" {
		t.Fatalf("books by genre = %+v", byGenre)
	}

	mustDo(t, "update foundation", s.UpdateBook(ctx, domain.Book{
		ID: "b-foundation", Title: "Foundation (1951)", AuthorID: "a-asimov", Summary: "Psychohistory.", ISBN: "9780553293357",
		Genres: []domain.Genre{{ID: "g-fantasy"}, {ID: "g-scifi"}},
	}))
	book, ok, err = s.GetBook(ctx, "b-foundation")
	if err != nil || !ok {
		t.Fatalf("get updated foundation: ok=%v err=%v", ok, err)
	}
	if book.Title != "Foundation (1951)" {
		t.Fatalf("updated title = %q", book.Title)
	}
	if got := book.GenreIDs(); !slices.Equal(got, []string{"g-fantasy", "g-scifi"}) {
		t.Fatalf("updated genres = %v", got)
	}
	wantErr(t, "update missing book", s.UpdateBook(ctx, domain.Book{ID: "b-missing", Title: "t", AuthorID: "a-bova"}), ErrNotFound)

	// book instances
	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mustDo(t, "create bi-1", s.CreateInstance(ctx, domain.BookInstance{ID: "bi-1", BookID: "b-foundation", Imprint: "Gnome Press, 1951", Status: domain.StatusAvailable}))
	mustDo(t, "create bi-2", s.CreateInstance(ctx, domain.BookInstance{ID: "bi-2", BookID: "b-foundation", Imprint: "Bantam, 1991", Status: domain.StatusLoaned, DueBack: &due}))
	wantErr(t, "instance of unknown book",
		s.CreateInstance(ctx, domain.BookInstance{ID: "bi-3", BookID: "b-missing", Imprint: "x", Status: domain.StatusAvailable}), ErrInvalidReference)

	copyTwo, ok, err := s.GetInstance(ctx, "bi-2")
	if err != nil || !ok {
		t.Fatalf("get bi-2: ok=%v err=%v", ok, err)
	}
	if copyTwo.Book == nil || copyTwo.Book.Title != "Foundation (1951)" {
		t.Fatalf("instance book = %+v", copyTwo.Book)
	}
	if got := copyTwo.DueBackFormatted(); got != "2024-05-01" {
		t.Fatalf("due back = %q", got)
	}

	instances, err := s.ListInstances(ctx)
	mustDo(t, "list instances", err)
	if len(instances) != 2 {
		t.Fatalf("instances = %d, want 2", len(instances))
	}
	for _, bi := range instances {
		if bi.Book == nil {
			t.Fatalf("instance %s listed without its book", bi.ID)
		}
	}
	byBook, err := s.ListInstancesByBook(ctx, "b-foundation")
	mustDo(t, "instances of foundation", err)
	if len(byBook) != 2 {
		t.Fatalf("instances of foundation = %d, want 2", len(byBook))
	}
	byBook, err = s.ListInstancesByBook(ctx, "b-mars")
	mustDo(t, "instances of mars", err)
	if len(byBook) != 0 {
		t.Fatalf("instances of mars = %d, want 0", len(byBook))
	}

	// counts
	n, err := s.CountInstances(ctx, "")
	wantCount(t, "instances", n, err, 2)
	n, err = s.CountInstances(ctx, domain.StatusAvailable)
	wantCount(t, "available instances", n, err, 1)
	n, err = s.CountBooks(ctx)
	wantCount(t, "books", n, err, 2)
	n, err = s.CountAuthors(ctx)
	wantCount(t, "authors", n, err, 2)
	n, err = s.CountGenres(ctx)
	wantCount(t, "genres", n, err, 2)

	// author deletion is refused while books reference the author
	wantErr(t, "delete referenced author", s.DeleteAuthor(ctx, "a-asimov"), ErrHasDependents)
	if _, ok, err = s.GetAuthor(ctx, "a-asimov"); err != nil || !ok {
		t.Fatalf("referenced author gone after refused delete: ok=%v err=%v", ok, err)
	}

	mustDo(t, "create lonely", s.CreateAuthor(ctx, domain.Author{ID: "a-lonely", FirstName: "Solo", FamilyName: "Writer"}))
	mustDo(t, "delete lonely", s.DeleteAuthor(ctx, "a-lonely"))
	if _, ok, err = s.GetAuthor(ctx, "a-lonely"); err != nil || ok {
		t.Fatalf("deleted author still found: ok=%v err=%v", ok, err)
	}
}
