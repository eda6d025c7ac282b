package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"locallibrary/pkg/domain"
)

const migrateLockID int64 = 51735173

// GormStore implements Store using GORM. Production runs on Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the Postgres DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	return NewGormStoreWithDialector(postgres.Open(dsn))
}

// NewGormStoreWithDialector opens any gorm dialector and runs auto-migrations.
// The migration advisory lock is only taken on Postgres.
func NewGormStoreWithDialector(dialector gorm.Dialector) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	migrate := func(tx *gorm.DB) error {
		if err := tx.SetupJoinTable(&BookModel{}, "Genres", &BookGenreModel{}); err != nil {
			return fmt.Errorf("setup join table: %w", err)
		}
		if err := tx.AutoMigrate(&AuthorModel{}, &GenreModel{}, &BookModel{}, &BookInstanceModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if db.Dialector.Name() == "postgres" {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListAuthors returns all authors ordered by family name, then first name.
func (s *GormStore) ListAuthors(ctx context.Context) ([]domain.Author, error) {
	var models []AuthorModel
	if err := s.db.WithContext(ctx).Order("family_name ASC").Order("first_name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Author, 0, len(models))
	for _, m := range models {
		res = append(res, authorFromModel(m))
	}
	return res, nil
}

// GetAuthor looks up an author by ID.
func (s *GormStore) GetAuthor(ctx context.Context, id string) (domain.Author, bool, error) {
	var model AuthorModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Author{}, false, nil
		}
		return domain.Author{}, false, err
	}
	return authorFromModel(model), true, nil
}

// CreateAuthor inserts a new author.
func (s *GormStore) CreateAuthor(ctx context.Context, a domain.Author) error {
	model := authorToModel(a)
	return translateError(s.db.WithContext(ctx).Create(&model).Error, ErrInvalidReference)
}

// DeleteAuthor removes an author that no book references.
func (s *GormStore) DeleteAuthor(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var books int64
		if err := tx.Model(&BookModel{}).Where("author_id = ?", id).Count(&books).Error; err != nil {
			return err
		}
		if books > 0 {
			return ErrHasDependents
		}
		return tx.Delete(&AuthorModel{}, "id = ?", id).Error
	})
	return translateError(err, ErrHasDependents)
}

// CountAuthors returns number of authors.
func (s *GormStore) CountAuthors(ctx context.Context) (int64, error) {
	return s.count(ctx, &AuthorModel{})
}

// ListBooks returns all books ordered by title with their author loaded.
func (s *GormStore) ListBooks(ctx context.Context) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.WithContext(ctx).Preload("Author").Order("title ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return booksFromModels(models), nil
}

// ListBooksByAuthor returns the title and summary of an author's books.
func (s *GormStore) ListBooksByAuthor(ctx context.Context, authorID string) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.WithContext(ctx).
		Select("id", "title", "summary", "author_id").
		Where("author_id = ?", authorID).
		Order("title ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return booksFromModels(models), nil
}

// ListBooksByGenre returns books tagged with the genre.
func (s *GormStore) ListBooksByGenre(ctx context.Context, genreID string) ([]domain.Book, error) {
	db := s.db.WithContext(ctx)
	var models []BookModel
	if err := db.
		Where("id IN (?)", db.Model(&BookGenreModel{}).Select("book_id").Where("genre_id = ?", genreID)).
		Order("title ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return booksFromModels(models), nil
}

// GetBook retrieves a book with its author and genres.
func (s *GormStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var model BookModel
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Genres", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// CreateBook inserts a book and its genre associations.
func (s *GormStore) CreateBook(ctx context.Context, b domain.Book) error {
	model := bookToModel(b)
	genreIDs := b.GenreIDs()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkBookReferences(tx, b.AuthorID, genreIDs); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return err
		}
		return insertBookGenres(tx, b.ID, genreIDs)
	})
	return translateError(err, ErrInvalidReference)
}

// UpdateBook rewrites a book in place and replaces its genre set.
// An empty CoverKey keeps the stored cover.
func (s *GormStore) UpdateBook(ctx context.Context, b domain.Book) error {
	genreIDs := b.GenreIDs()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&BookModel{}).Where("id = ?", b.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			return ErrNotFound
		}
		if err := checkBookReferences(tx, b.AuthorID, genreIDs); err != nil {
			return err
		}
		updates := map[string]any{
			"title":      b.Title,
			"author_id":  b.AuthorID,
			"summary":    b.Summary,
			"isbn":       b.ISBN,
			"updated_at": time.Now().UTC(),
		}
		if b.CoverKey != "" {
			updates["cover_key"] = b.CoverKey
		}
		if err := tx.Model(&BookModel{}).Where("id = ?", b.ID).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Delete(&BookGenreModel{}, "book_id = ?", b.ID).Error; err != nil {
			return err
		}
		return insertBookGenres(tx, b.ID, genreIDs)
	})
	return translateError(err, ErrInvalidReference)
}

// CountBooks returns number of books.
func (s *GormStore) CountBooks(ctx context.Context) (int64, error) {
	return s.count(ctx, &BookModel{})
}

func checkBookReferences(tx *gorm.DB, authorID string, genreIDs []string) error {
	var authors int64
	if err := tx.Model(&AuthorModel{}).Where("id = ?", authorID).Count(&authors).Error; err != nil {
		return err
	}
	if authors == 0 {
		return fmt.Errorf("%w: author %s", ErrInvalidReference, authorID)
	}
	if len(genreIDs) == 0 {
		return nil
	}
	var genres int64
	if err := tx.Model(&GenreModel{}).Where("id IN ?", genreIDs).Count(&genres).Error; err != nil {
		return err
	}
	if genres != int64(len(genreIDs)) {
		return fmt.Errorf("%w: genre", ErrInvalidReference)
	}
	return nil
}

func insertBookGenres(tx *gorm.DB, bookID string, genreIDs []string) error {
	if len(genreIDs) == 0 {
		return nil
	}
	rows := make([]BookGenreModel, 0, len(genreIDs))
	for _, id := range genreIDs {
		rows = append(rows, BookGenreModel{BookID: bookID, GenreID: id})
	}
	return tx.Create(&rows).Error
}

// ListInstances returns all copies with their book loaded.
func (s *GormStore) ListInstances(ctx context.Context) ([]domain.BookInstance, error) {
	var models []BookInstanceModel
	if err := s.db.WithContext(ctx).Preload("Book").Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return instancesFromModels(models), nil
}

// ListInstancesByBook returns the copies of one book.
func (s *GormStore) ListInstancesByBook(ctx context.Context, bookID string) ([]domain.BookInstance, error) {
	var models []BookInstanceModel
	if err := s.db.WithContext(ctx).Where("book_id = ?", bookID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return instancesFromModels(models), nil
}

// GetInstance retrieves a copy with its book.
func (s *GormStore) GetInstance(ctx context.Context, id string) (domain.BookInstance, bool, error) {
	var model BookInstanceModel
	if err := s.db.WithContext(ctx).Preload("Book").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.BookInstance{}, false, nil
		}
		return domain.BookInstance{}, false, err
	}
	return instanceFromModel(model), true, nil
}

// CreateInstance inserts a copy of an existing book.
func (s *GormStore) CreateInstance(ctx context.Context, bi domain.BookInstance) error {
	model := instanceToModel(bi)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var books int64
		if err := tx.Model(&BookModel{}).Where("id = ?", bi.BookID).Count(&books).Error; err != nil {
			return err
		}
		if books == 0 {
			return fmt.Errorf("%w: book %s", ErrInvalidReference, bi.BookID)
		}
		return tx.Omit(clause.Associations).Create(&model).Error
	})
	return translateError(err, ErrInvalidReference)
}

// CountInstances counts copies, optionally filtered by status.
func (s *GormStore) CountInstances(ctx context.Context, status domain.InstanceStatus) (int64, error) {
	if status == "" {
		return s.count(ctx, &BookInstanceModel{})
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&BookInstanceModel{}).Where("status = ?", string(status)).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListGenres returns all genres ordered by name.
func (s *GormStore) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	var models []GenreModel
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Genre, 0, len(models))
	for _, m := range models {
		res = append(res, genreFromModel(m))
	}
	return res, nil
}

// GetGenre looks up a genre by ID.
func (s *GormStore) GetGenre(ctx context.Context, id string) (domain.Genre, bool, error) {
	return s.findGenre(ctx, "id = ?", id)
}

// GetGenreByName looks up a genre by exact name.
func (s *GormStore) GetGenreByName(ctx context.Context, name string) (domain.Genre, bool, error) {
	return s.findGenre(ctx, "name = ?", name)
}

func (s *GormStore) findGenre(ctx context.Context, query string, arg string) (domain.Genre, bool, error) {
	var model GenreModel
	if err := s.db.WithContext(ctx).First(&model, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Genre{}, false, nil
		}
		return domain.Genre{}, false, err
	}
	return genreFromModel(model), true, nil
}

// CreateGenre inserts a genre; the unique name index reports ErrDuplicate.
func (s *GormStore) CreateGenre(ctx context.Context, g domain.Genre) error {
	model := genreToModel(g)
	return translateError(s.db.WithContext(ctx).Create(&model).Error, ErrInvalidReference)
}

// CountGenres returns number of genres.
func (s *GormStore) CountGenres(ctx context.Context) (int64, error) {
	return s.count(ctx, &GenreModel{})
}

func (s *GormStore) count(ctx context.Context, model any) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// translateError maps driver constraint errors onto store sentinels.
// fkErr is the sentinel to report for foreign key violations.
func translateError(err error, fkErr error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidReference) || errors.Is(err, ErrHasDependents) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		case "23503":
			return fmt.Errorf("%w: %w", fkErr, err)
		}
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %w", fkErr, err)
	}
	return err
}

func toDate(t *time.Time) *datatypes.Date {
	if t == nil {
		return nil
	}
	d := datatypes.Date(t.UTC())
	return &d
}

func fromDate(d *datatypes.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := time.Time(*d)
	if t.IsZero() {
		return nil
	}
	y, m, day := t.Date()
	t = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func authorToModel(a domain.Author) AuthorModel {
	return AuthorModel{
		ID:         a.ID,
		FirstName:  a.FirstName,
		FamilyName: a.FamilyName,
		BornOn:     toDate(a.BornOn),
		DiedOn:     toDate(a.DiedOn),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func authorFromModel(m AuthorModel) domain.Author {
	return domain.Author{
		ID:         m.ID,
		FirstName:  m.FirstName,
		FamilyName: m.FamilyName,
		BornOn:     fromDate(m.BornOn),
		DiedOn:     fromDate(m.DiedOn),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:        b.ID,
		Title:     b.Title,
		AuthorID:  b.AuthorID,
		Summary:   b.Summary,
		ISBN:      b.ISBN,
		CoverKey:  b.CoverKey,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	b := domain.Book{
		ID:        m.ID,
		Title:     m.Title,
		AuthorID:  m.AuthorID,
		Summary:   m.Summary,
		ISBN:      m.ISBN,
		CoverKey:  m.CoverKey,
		Genres:    make([]domain.Genre, 0, len(m.Genres)),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Author.ID != "" {
		author := authorFromModel(m.Author)
		b.Author = &author
	}
	for _, g := range m.Genres {
		b.Genres = append(b.Genres, genreFromModel(g))
	}
	return b
}

func booksFromModels(models []BookModel) []domain.Book {
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res
}

func instanceToModel(bi domain.BookInstance) BookInstanceModel {
	return BookInstanceModel{
		ID:        bi.ID,
		BookID:    bi.BookID,
		Imprint:   bi.Imprint,
		Status:    string(bi.Status),
		DueBack:   toDate(bi.DueBack),
		CreatedAt: bi.CreatedAt,
		UpdatedAt: bi.UpdatedAt,
	}
}

func instanceFromModel(m BookInstanceModel) domain.BookInstance {
	bi := domain.BookInstance{
		ID:        m.ID,
		BookID:    m.BookID,
		Imprint:   m.Imprint,
		Status:    domain.InstanceStatus(m.Status),
		DueBack:   fromDate(m.DueBack),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Book.ID != "" {
		book := bookFromModel(m.Book)
		bi.Book = &book
	}
	return bi
}

func instancesFromModels(models []BookInstanceModel) []domain.BookInstance {
	res := make([]domain.BookInstance, 0, len(models))
	for _, m := range models {
		res = append(res, instanceFromModel(m))
	}
	return res
}

func genreToModel(g domain.Genre) GenreModel {
	return GenreModel{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt}
}

func genreFromModel(m GenreModel) domain.Genre {
	return domain.Genre{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
}
