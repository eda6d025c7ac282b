package app

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"locallibrary/pkg/domain"
	"locallibrary/pkg/events"
)

func bookValues(genres ...string) url.Values {
	v := url.Values{
		"title":   {" The Left Hand of Darkness "},
		"author":  {"a1"},
		"summary": {"Winter."},
		"isbn":    {"9780441478125"},
	}
	if genres != nil {
		v["genre"] = genres
	}
	return v
}

func TestCreateBookGenreShapes(t *testing.T) {
	tests := []struct {
		name   string
		genres []string
		want   []string
	}{
		{name: "absent", genres: nil, want: []string{}},
		{name: "scalar", genres: []string{"g1"}, want: []string{"g1"}},
		{name: "multiple", genres: []string{"g1", "g2"}, want: []string{"g1", "g2"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			ctx := context.Background()
			seedAuthor(t, env.store, "a1", "Ursula", "LeGuin")
			seedGenre(t, env.store, "g1", "Fantasy")
			seedGenre(t, env.store, "g2", "Science Fiction")

			book, err := env.app.CreateBook(ctx, BookFormFromValues(bookValues(tc.genres...)), nil)
			if err != nil {
				t.Fatalf("create book: %v", err)
			}
			stored, found, err := env.store.GetBook(ctx, book.ID)
			if err != nil || !found {
				t.Fatalf("stored book missing: found=%v err=%v", found, err)
			}
			if stored.Title != "The Left Hand of Darkness" {
				t.Fatalf("title = %q", stored.Title)
			}
			got := stored.GenreIDs()
			if len(got) != len(tc.want) {
				t.Fatalf("genres = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("genres = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestCreateBookKeepsMarkupCharacters(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	seedAuthor(t, env.store, "a1", "Ursula", "LeGuin")

	values := bookValues()
	values.Set("title", " If a<b and c>d ")
	values.Set("summary", "x &lt; y")
	book, err := env.app.CreateBook(ctx, BookFormFromValues(values), nil)
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	stored, found, err := env.store.GetBook(ctx, book.ID)
	if err != nil || !found {
		t.Fatalf("stored book missing: found=%v err=%v", found, err)
	}
	if stored.Title != "If a<b and c>d" {
		t.Fatalf("title = %q, want markup characters kept", stored.Title)
	}
	if stored.Summary != "x &lt; y" {
		t.Fatalf("summary = %q, want entity kept literally", stored.Summary)
	}
}

func TestCreateBookValidationKeepsCheckedGenres(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	seedAuthor(t, env.store, "a1", "Ursula", "LeGuin")
	seedGenre(t, env.store, "g1", "Fantasy")
	seedGenre(t, env.store, "g2", "Science Fiction")

	form := BookFormFromValues(url.Values{"title": {""}, "author": {"a1"}, "genre": {"g2"}})
	_, err := env.app.CreateBook(ctx, form, nil)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if !verrs.Has("title") || !verrs.Has("summary") || !verrs.Has("isbn") || verrs.Has("author") {
		t.Fatalf("unexpected fields %+v", verrs)
	}
	if verrs[0].Message != "Title must not be empty." {
		t.Fatalf("message = %q", verrs[0].Message)
	}

	opts, err := env.app.BookFormOptions(ctx, form)
	if err != nil {
		t.Fatalf("form options: %v", err)
	}
	if len(opts.Authors) != 1 || len(opts.Genres) != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
	for _, g := range opts.Genres {
		if g.Checked != (g.ID == "g2") {
			t.Fatalf("genre %s checked = %v", g.ID, g.Checked)
		}
	}
}

func TestCreateBookUnknownReferences(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	seedAuthor(t, env.store, "a1", "Ursula", "LeGuin")

	values := bookValues()
	values.Set("author", "nobody")
	_, err := env.app.CreateBook(ctx, BookFormFromValues(values), nil)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || !verrs.Has("author") {
		t.Fatalf("unknown author err = %v, want author validation error", err)
	}

	_, err = env.app.CreateBook(ctx, BookFormFromValues(bookValues("g-missing")), nil)
	if !errors.As(err, &verrs) || !verrs.Has("genre") {
		t.Fatalf("unknown genre err = %v, want genre validation error", err)
	}
	if n, _ := env.store.CountBooks(ctx); n != 0 {
		t.Fatalf("book stored despite bad references")
	}
}

func TestBookDetail(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	seedAuthor(t, env.store, "a1", "Ursula", "LeGuin")
	seedBook(t, env.store, "b1", "Earthsea", "a1")
	if err := env.store.CreateInstance(ctx, domain.BookInstance{ID: "bi1", BookID: "b1", Imprint: "Parnassus", Status: domain.StatusAvailable}); err != nil {
		t.Fatalf("seed instance: %v", err)
	}

	detail, err := env.app.BookDetail(ctx, "b1")
	if err != nil {
		t.Fatalf("book detail: %v", err)
	}
	if detail.Book.Author == nil || detail.Book.Author.FamilyName != "LeGuin" {
		t.Fatalf("author not joined: %+v", detail.Book)
	}
	if len(detail.Instances) != 1 || detail.CoverURL != "" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if _, err := env.app.BookDetail(ctx, "missing"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("missing book err = %v", err)
	}
}

func TestBookForEditAndUpdate(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	seedAuthor(t, env.store, "a1", "Ursula", "LeGuin")
	seedAuthor(t, env.store, "a2", "Anne", "McCaffrey")
	seedGenre(t, env.store, "g1", "Fantasy")
	seedGenre(t, env.store, "g2", "Science Fiction")
	seedBook(t, env.store, "b1", "Earthsea", "a1", "g1")

	form, opts, err := env.app.BookForEdit(ctx, "b1")
	if err != nil {
		t.Fatalf("book for edit: %v", err)
	}
	if form.Title != "Earthsea" || form.Author != "a1" {
		t.Fatalf("unexpected form %+v", form)
	}
	if !opts.Genres[0].Checked || opts.Genres[1].Checked {
		t.Fatalf("checked flags wrong: %+v", opts.Genres)
	}
	if _, _, err := env.app.BookForEdit(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing book err = %v", err)
	}

	values := bookValues("g2")
	values.Set("author", "a2")
	updated, err := env.app.UpdateBook(ctx, "b1", BookFormFromValues(values), nil)
	if err != nil {
		t.Fatalf("update book: %v", err)
	}
	if updated.ID != "b1" {
		t.Fatalf("update changed identity to %q", updated.ID)
	}
	stored, _, _ := env.store.GetBook(ctx, "b1")
	if stored.AuthorID != "a2" || len(stored.Genres) != 1 || stored.Genres[0].ID != "g2" {
		t.Fatalf("book not updated in place: %+v", stored)
	}
	if n, _ := env.store.CountBooks(ctx); n != 1 {
		t.Fatalf("update created a new book")
	}
	ev, _ := env.events.last()
	if ev.Action != events.ActionUpdated || ev.ID != "b1" {
		t.Fatalf("unexpected event %+v", ev)
	}

	if _, err := env.app.UpdateBook(ctx, "missing", BookFormFromValues(bookValues()), nil); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("update missing err = %v", err)
	}
}

func TestCreateBookWithCover(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	seedAuthor(t, env.store, "a1", "Ursula", "LeGuin")

	cover := &Upload{Filename: "front.PNG", Size: 4, Body: strings.NewReader("\x89PNG")}
	book, err := env.app.CreateBook(ctx, BookFormFromValues(bookValues()), cover)
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if !strings.HasPrefix(book.CoverKey, "covers/"+book.ID+"/") || !strings.HasSuffix(book.CoverKey, ".png") {
		t.Fatalf("cover key = %q", book.CoverKey)
	}
	if env.objects.types[book.CoverKey] != "image/png" {
		t.Fatalf("content type = %q", env.objects.types[book.CoverKey])
	}

	detail, err := env.app.BookDetail(ctx, book.ID)
	if err != nil {
		t.Fatalf("book detail: %v", err)
	}
	if !strings.Contains(detail.CoverURL, book.CoverKey) || !strings.Contains(detail.CoverURL, "expires=900") {
		t.Fatalf("cover url = %q", detail.CoverURL)
	}

	replacement := &Upload{Filename: "back.jpg", ContentType: "image/jpeg", Size: 3, Body: strings.NewReader("jpg")}
	updated, err := env.app.UpdateBook(ctx, book.ID, BookFormFromValues(bookValues()), replacement)
	if err != nil {
		t.Fatalf("update book: %v", err)
	}
	keys := env.objects.keys()
	if len(keys) != 1 || keys[0] != updated.CoverKey {
		t.Fatalf("old cover not replaced: keys=%v new=%q", keys, updated.CoverKey)
	}
}

func TestCreateBookRejectsNonImageCover(t *testing.T) {
	env := newTestEnv(t, true)
	seedAuthor(t, env.store, "a1", "Ursula", "LeGuin")

	cover := &Upload{Filename: "notes.txt", ContentType: "text/plain", Size: 2, Body: strings.NewReader("hi")}
	_, err := env.app.CreateBook(context.Background(), BookFormFromValues(bookValues()), cover)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || !verrs.Has("cover") {
		t.Fatalf("err = %v, want cover validation error", err)
	}
	if len(env.objects.keys()) != 0 {
		t.Fatalf("rejected cover was stored")
	}
}

func TestCoverIgnoredWithoutObjectStore(t *testing.T) {
	env := newTestEnv(t, false)
	seedAuthor(t, env.store, "a1", "Ursula", "LeGuin")

	cover := &Upload{Filename: "notes.txt", ContentType: "text/plain", Size: 2, Body: strings.NewReader("hi")}
	book, err := env.app.CreateBook(context.Background(), BookFormFromValues(bookValues()), cover)
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if book.CoverKey != "" {
		t.Fatalf("cover key = %q, want empty", book.CoverKey)
	}
}
