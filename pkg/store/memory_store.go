package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"locallibrary/pkg/domain"
)

// MemoryStore keeps the catalog in-process. It backs tests and local demos.
type MemoryStore struct {
	mu         sync.RWMutex
	authors    map[string]domain.Author
	books      map[string]domain.Book // Author and Genres are not stored; joined on read
	bookGenres map[string][]string    // book ID -> genre IDs
	instances  map[string]domain.BookInstance
	genres     map[string]domain.Genre
	genreNames map[string]string // name -> genre ID
	orders     []string          // instance insertion order
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		authors:    make(map[string]domain.Author),
		books:      make(map[string]domain.Book),
		bookGenres: make(map[string][]string),
		instances:  make(map[string]domain.BookInstance),
		genres:     make(map[string]domain.Genre),
		genreNames: make(map[string]string),
	}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// ListAuthors returns authors ordered by family name, then first name.
func (m *MemoryStore) ListAuthors(_ context.Context) ([]domain.Author, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Author, 0, len(m.authors))
	for _, a := range m.authors {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].FamilyName != res[j].FamilyName {
			return res[i].FamilyName < res[j].FamilyName
		}
		return res[i].FirstName < res[j].FirstName
	})
	return res, nil
}

// GetAuthor retrieves an author by ID.
func (m *MemoryStore) GetAuthor(_ context.Context, id string) (domain.Author, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.authors[id]
	return a, ok, nil
}

// CreateAuthor stores a new author.
func (m *MemoryStore) CreateAuthor(_ context.Context, a domain.Author) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.authors[a.ID]; exists {
		return fmt.Errorf("%w: author %s", ErrDuplicate, a.ID)
	}
	stampTimes(&a.CreatedAt, &a.UpdatedAt)
	m.authors[a.ID] = a
	return nil
}

// DeleteAuthor removes an author that no book references.
func (m *MemoryStore) DeleteAuthor(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.books {
		if b.AuthorID == id {
			return ErrHasDependents
		}
	}
	delete(m.authors, id)
	return nil
}

// CountAuthors returns number of authors.
func (m *MemoryStore) CountAuthors(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.authors)), nil
}

// ListBooks returns books ordered by title with their author joined.
func (m *MemoryStore) ListBooks(_ context.Context) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterBooks(func(domain.Book) bool { return true }, true), nil
}

// ListBooksByAuthor returns the id, title and summary of an author's books.
func (m *MemoryStore) ListBooksByAuthor(_ context.Context, authorID string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	books := m.filterBooks(func(b domain.Book) bool { return b.AuthorID == authorID }, false)
	for i, b := range books {
		books[i] = domain.Book{ID: b.ID, Title: b.Title, Summary: b.Summary, AuthorID: b.AuthorID, Genres: []domain.Genre{}}
	}
	return books, nil
}

// ListBooksByGenre returns books tagged with the genre.
func (m *MemoryStore) ListBooksByGenre(_ context.Context, genreID string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterBooks(func(b domain.Book) bool {
		for _, id := range m.bookGenres[b.ID] {
			if id == genreID {
				return true
			}
		}
		return false
	}, false), nil
}

func (m *MemoryStore) filterBooks(keep func(domain.Book) bool, withAuthor bool) []domain.Book {
	res := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		if !keep(b) {
			continue
		}
		b.Genres = []domain.Genre{}
		if withAuthor {
			if a, ok := m.authors[b.AuthorID]; ok {
				b.Author = &a
			}
		}
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Title < res[j].Title })
	return res
}

// GetBook retrieves a book with its author and genres joined.
func (m *MemoryStore) GetBook(_ context.Context, id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.loadBook(id)
	return b, ok, nil
}

func (m *MemoryStore) loadBook(id string) (domain.Book, bool) {
	b, ok := m.books[id]
	if !ok {
		return domain.Book{}, false
	}
	if a, ok := m.authors[b.AuthorID]; ok {
		b.Author = &a
	}
	b.Genres = make([]domain.Genre, 0, len(m.bookGenres[id]))
	for _, gid := range m.bookGenres[id] {
		if g, ok := m.genres[gid]; ok {
			b.Genres = append(b.Genres, g)
		}
	}
	sort.Slice(b.Genres, func(i, j int) bool { return b.Genres[i].Name < b.Genres[j].Name })
	return b, true
}

// CreateBook stores a new book and its genre associations.
func (m *MemoryStore) CreateBook(_ context.Context, b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.ID]; exists {
		return fmt.Errorf("%w: book %s", ErrDuplicate, b.ID)
	}
	if err := m.checkBookReferences(b); err != nil {
		return err
	}
	m.bookGenres[b.ID] = b.GenreIDs()
	b.Author = nil
	b.Genres = nil
	stampTimes(&b.CreatedAt, &b.UpdatedAt)
	m.books[b.ID] = b
	return nil
}

// UpdateBook rewrites a book in place. An empty CoverKey keeps the stored cover.
func (m *MemoryStore) UpdateBook(_ context.Context, b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.books[b.ID]
	if !ok {
		return ErrNotFound
	}
	if err := m.checkBookReferences(b); err != nil {
		return err
	}
	m.bookGenres[b.ID] = b.GenreIDs()
	existing.Title = b.Title
	existing.AuthorID = b.AuthorID
	existing.Summary = b.Summary
	existing.ISBN = b.ISBN
	if b.CoverKey != "" {
		existing.CoverKey = b.CoverKey
	}
	existing.UpdatedAt = time.Now().UTC()
	m.books[b.ID] = existing
	return nil
}

func (m *MemoryStore) checkBookReferences(b domain.Book) error {
	if _, ok := m.authors[b.AuthorID]; !ok {
		return fmt.Errorf("%w: author %s", ErrInvalidReference, b.AuthorID)
	}
	for _, g := range b.Genres {
		if _, ok := m.genres[g.ID]; !ok {
			return fmt.Errorf("%w: genre %s", ErrInvalidReference, g.ID)
		}
	}
	return nil
}

// CountBooks returns number of books.
func (m *MemoryStore) CountBooks(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.books)), nil
}

// ListInstances returns copies in insertion order with their book joined.
func (m *MemoryStore) ListInstances(_ context.Context) ([]domain.BookInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterInstances(func(domain.BookInstance) bool { return true }, true), nil
}

// ListInstancesByBook returns the copies of one book.
func (m *MemoryStore) ListInstancesByBook(_ context.Context, bookID string) ([]domain.BookInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterInstances(func(bi domain.BookInstance) bool { return bi.BookID == bookID }, false), nil
}

func (m *MemoryStore) filterInstances(keep func(domain.BookInstance) bool, withBook bool) []domain.BookInstance {
	res := make([]domain.BookInstance, 0, len(m.orders))
	for _, id := range m.orders {
		bi, ok := m.instances[id]
		if !ok || !keep(bi) {
			continue
		}
		if withBook {
			if b, ok := m.books[bi.BookID]; ok {
				b.Genres = []domain.Genre{}
				bi.Book = &b
			}
		}
		res = append(res, bi)
	}
	return res
}

// GetInstance retrieves a copy with its book joined.
func (m *MemoryStore) GetInstance(_ context.Context, id string) (domain.BookInstance, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bi, ok := m.instances[id]
	if !ok {
		return domain.BookInstance{}, false, nil
	}
	if b, ok := m.books[bi.BookID]; ok {
		b.Genres = []domain.Genre{}
		bi.Book = &b
	}
	return bi, true, nil
}

// CreateInstance stores a copy of an existing book.
func (m *MemoryStore) CreateInstance(_ context.Context, bi domain.BookInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[bi.ID]; exists {
		return fmt.Errorf("%w: book instance %s", ErrDuplicate, bi.ID)
	}
	if _, ok := m.books[bi.BookID]; !ok {
		return fmt.Errorf("%w: book %s", ErrInvalidReference, bi.BookID)
	}
	bi.Book = nil
	stampTimes(&bi.CreatedAt, &bi.UpdatedAt)
	m.instances[bi.ID] = bi
	m.orders = append(m.orders, bi.ID)
	return nil
}

// CountInstances counts copies, optionally filtered by status.
func (m *MemoryStore) CountInstances(_ context.Context, status domain.InstanceStatus) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, bi := range m.instances {
		if status == "" || bi.Status == status {
			n++
		}
	}
	return n, nil
}

// ListGenres returns genres ordered by name.
func (m *MemoryStore) ListGenres(_ context.Context) ([]domain.Genre, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Genre, 0, len(m.genres))
	for _, g := range m.genres {
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// GetGenre retrieves a genre by ID.
func (m *MemoryStore) GetGenre(_ context.Context, id string) (domain.Genre, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.genres[id]
	return g, ok, nil
}

// GetGenreByName retrieves a genre by exact name.
func (m *MemoryStore) GetGenreByName(_ context.Context, name string) (domain.Genre, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.genreNames[name]
	if !ok {
		return domain.Genre{}, false, nil
	}
	return m.genres[id], true, nil
}

// CreateGenre stores a genre, enforcing name uniqueness.
func (m *MemoryStore) CreateGenre(_ context.Context, g domain.Genre) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.genreNames[g.Name]; exists {
		return fmt.Errorf("%w: genre name %q", ErrDuplicate, g.Name)
	}
	if _, exists := m.genres[g.ID]; exists {
		return fmt.Errorf("%w: genre %s", ErrDuplicate, g.ID)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	m.genres[g.ID] = g
	m.genreNames[g.Name] = g.ID
	return nil
}

// CountGenres returns number of genres.
func (m *MemoryStore) CountGenres(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.genres)), nil
}

// stampTimes fills zero timestamps with the current time.
func stampTimes(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}
