package app

import (
	"context"
	"errors"
	"net/url"
	"sync/atomic"
	"testing"

	"locallibrary/pkg/domain"
	"locallibrary/pkg/store"
)

func TestCreateGenreTwiceReturnsSameGenre(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	first, err := env.app.CreateGenre(ctx, GenreFormFromValues(url.Values{"name": {"Fiction"}}))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := env.app.CreateGenre(ctx, GenreFormFromValues(url.Values{"name": {" Fiction "}}))
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("second create returned %q, want existing %q", second.ID, first.ID)
	}
	if n, _ := env.store.CountGenres(ctx); n != 1 {
		t.Fatalf("genre count = %d, want 1", n)
	}
	if len(env.events.events) != 1 {
		t.Fatalf("events = %d, want only the first create", len(env.events.events))
	}

	other, err := env.app.CreateGenre(ctx, GenreForm{Name: "fiction"})
	if err != nil {
		t.Fatalf("lowercase create: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("genre names must match case-sensitively")
	}
}

func TestCreateGenreRequiresName(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := env.app.CreateGenre(context.Background(), GenreFormFromValues(url.Values{"name": {" \x00\x1f "}}))
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 1 || verrs[0].Message != "Genre name required" {
		t.Fatalf("err = %v, want genre name required", err)
	}
}

// lateGenreStore hides existing genres from name lookups until hideLookups runs out,
// reproducing a concurrent create landing between lookup and insert.
type lateGenreStore struct {
	*store.MemoryStore
	hideLookups atomic.Int32
}

func (s *lateGenreStore) GetGenreByName(ctx context.Context, name string) (domain.Genre, bool, error) {
	if s.hideLookups.Add(-1) >= 0 {
		return domain.Genre{}, false, nil
	}
	return s.MemoryStore.GetGenreByName(ctx, name)
}

func TestCreateGenreLosingRaceReturnsWinner(t *testing.T) {
	mem := store.NewMemoryStore()
	winner := seedGenre(t, mem, "g-winner", "Fiction")
	racy := &lateGenreStore{MemoryStore: mem}
	racy.hideLookups.Store(1)
	a, err := New(Config{Store: racy})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	got, err := a.CreateGenre(context.Background(), GenreForm{Name: "Fiction"})
	if err != nil {
		t.Fatalf("create genre: %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("got %q, want winner %q", got.ID, winner.ID)
	}
	if n, _ := mem.CountGenres(context.Background()); n != 1 {
		t.Fatalf("duplicate genre stored")
	}
}

func TestCreateGenreConflictWhenWinnerVanishes(t *testing.T) {
	mem := store.NewMemoryStore()
	seedGenre(t, mem, "g-winner", "Fiction")
	racy := &lateGenreStore{MemoryStore: mem}
	racy.hideLookups.Store(2)
	a, err := New(Config{Store: racy})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	_, err = a.CreateGenre(context.Background(), GenreForm{Name: "Fiction"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestGenreDetail(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	seedAuthor(t, env.store, "a1", "Ursula", "LeGuin")
	seedGenre(t, env.store, "g1", "Fantasy")
	seedBook(t, env.store, "b1", "Earthsea", "a1", "g1")
	seedBook(t, env.store, "b2", "The Dispossessed", "a1")

	detail, err := env.app.GenreDetail(ctx, "g1")
	if err != nil {
		t.Fatalf("genre detail: %v", err)
	}
	if detail.Genre.Name != "Fantasy" || len(detail.Books) != 1 || detail.Books[0].ID != "b1" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if _, err := env.app.GenreDetail(ctx, "missing"); !errors.Is(err, ErrGenreNotFound) {
		t.Fatalf("missing genre err = %v", err)
	}
}
