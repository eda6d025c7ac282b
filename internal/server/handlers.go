package server

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"locallibrary/internal/app"
	"locallibrary/pkg/domain"
)

type bookFormView struct {
	Form          app.BookForm
	Options       app.BookFormOptions
	CoversEnabled bool
}

type instanceFormView struct {
	Form    app.InstanceForm
	Options app.InstanceFormOptions
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) error {
	counts, err := s.app.Index(r.Context())
	if err != nil {
		return err
	}
	return s.render(w, http.StatusOK, "index", page{Title: "Local Library Home", Data: counts})
}

// authors

func (s *Server) handleAuthorList(w http.ResponseWriter, r *http.Request) error {
	authors, err := s.app.ListAuthors(r.Context())
	if err != nil {
		return err
	}
	return s.render(w, http.StatusOK, "author_list", page{Title: "Author List", Data: authors})
}

func (s *Server) handleAuthorDetail(w http.ResponseWriter, r *http.Request) error {
	detail, err := s.app.AuthorDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return s.render(w, http.StatusOK, "author_detail", page{Title: "Author Detail", Data: detail})
}

func (s *Server) handleAuthorCreateForm(w http.ResponseWriter, _ *http.Request) error {
	return s.render(w, http.StatusOK, "author_form", page{Title: "Create Author", Data: app.AuthorForm{}})
}

func (s *Server) handleAuthorCreate(w http.ResponseWriter, r *http.Request) error {
	if err := s.parseForm(w, r); err != nil {
		return err
	}
	form := app.AuthorFormFromValues(r.PostForm)
	author, err := s.app.CreateAuthor(r.Context(), form)
	var invalid app.ValidationErrors
	if errors.As(err, &invalid) {
		return s.render(w, http.StatusOK, "author_form", page{Title: "Create Author", Errors: invalid, Data: form})
	}
	if err != nil {
		return err
	}
	return redirect(w, r, author.URL())
}

func (s *Server) handleAuthorDeleteForm(w http.ResponseWriter, r *http.Request) error {
	detail, found, err := s.app.AuthorForDeletion(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	if !found {
		return redirect(w, r, "/catalog/authors")
	}
	return s.render(w, http.StatusOK, "author_delete", page{Title: "Delete Author", Data: detail})
}

func (s *Server) handleAuthorDelete(w http.ResponseWriter, r *http.Request) error {
	detail, deleted, err := s.app.DeleteAuthor(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	if !deleted {
		return s.render(w, http.StatusOK, "author_delete", page{Title: "Delete Author", Data: detail})
	}
	return redirect(w, r, "/catalog/authors")
}

// books

func (s *Server) handleBookList(w http.ResponseWriter, r *http.Request) error {
	books, err := s.app.ListBooks(r.Context())
	if err != nil {
		return err
	}
	return s.render(w, http.StatusOK, "book_list", page{Title: "Book List", Data: books})
}

func (s *Server) handleBookDetail(w http.ResponseWriter, r *http.Request) error {
	detail, err := s.app.BookDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return s.render(w, http.StatusOK, "book_detail", page{Title: detail.Book.Title, Data: detail})
}

func (s *Server) handleBookCreateForm(w http.ResponseWriter, r *http.Request) error {
	return s.renderBookForm(w, r, "Create Book", app.BookForm{}, nil)
}

func (s *Server) handleBookCreate(w http.ResponseWriter, r *http.Request) error {
	if err := s.parseForm(w, r); err != nil {
		return err
	}
	form := app.BookFormFromValues(r.PostForm)
	cover, closeCover, err := s.coverUpload(r)
	if err != nil {
		return err
	}
	defer closeCover()
	book, err := s.app.CreateBook(r.Context(), form, cover)
	var invalid app.ValidationErrors
	if errors.As(err, &invalid) {
		return s.renderBookForm(w, r, "Create Book", form, invalid)
	}
	if err != nil {
		return err
	}
	return redirect(w, r, book.URL())
}

func (s *Server) handleBookUpdateForm(w http.ResponseWriter, r *http.Request) error {
	form, opts, err := s.app.BookForEdit(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	data := bookFormView{Form: form, Options: opts, CoversEnabled: s.app.CoversEnabled()}
	return s.render(w, http.StatusOK, "book_form", page{Title: "Update Book", Data: data})
}

func (s *Server) handleBookUpdate(w http.ResponseWriter, r *http.Request) error {
	if err := s.parseForm(w, r); err != nil {
		return err
	}
	id := r.PathValue("id")
	form := app.BookFormFromValues(r.PostForm)
	cover, closeCover, err := s.coverUpload(r)
	if err != nil {
		return err
	}
	defer closeCover()
	book, err := s.app.UpdateBook(r.Context(), id, form, cover)
	var invalid app.ValidationErrors
	if errors.As(err, &invalid) {
		return s.renderBookForm(w, r, "Update Book", form, invalid)
	}
	if err != nil {
		return err
	}
	return redirect(w, r, book.URL())
}

func (s *Server) renderBookForm(w http.ResponseWriter, r *http.Request, title string, form app.BookForm, invalid app.ValidationErrors) error {
	opts, err := s.app.BookFormOptions(r.Context(), form)
	if err != nil {
		return err
	}
	data := bookFormView{Form: form, Options: opts, CoversEnabled: s.app.CoversEnabled()}
	return s.render(w, http.StatusOK, "book_form", page{Title: title, Errors: invalid, Data: data})
}

// book copies

func (s *Server) handleInstanceList(w http.ResponseWriter, r *http.Request) error {
	instances, err := s.app.ListInstances(r.Context())
	if err != nil {
		return err
	}
	return s.render(w, http.StatusOK, "bookinstance_list", page{Title: "Book Instance List", Data: instances})
}

func (s *Server) handleInstanceDetail(w http.ResponseWriter, r *http.Request) error {
	bi, err := s.app.InstanceDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	title := "Copy"
	if bi.Book != nil {
		title = "Copy: " + bi.Book.Title
	}
	return s.render(w, http.StatusOK, "bookinstance_detail", page{Title: title, Data: bi})
}

func (s *Server) handleInstanceCreateForm(w http.ResponseWriter, r *http.Request) error {
	return s.renderInstanceForm(w, r, app.InstanceForm{Status: string(domain.StatusMaintenance)}, nil)
}

func (s *Server) handleInstanceCreate(w http.ResponseWriter, r *http.Request) error {
	if err := s.parseForm(w, r); err != nil {
		return err
	}
	form := app.InstanceFormFromValues(r.PostForm)
	bi, err := s.app.CreateInstance(r.Context(), form)
	var invalid app.ValidationErrors
	if errors.As(err, &invalid) {
		return s.renderInstanceForm(w, r, form, invalid)
	}
	if err != nil {
		return err
	}
	return redirect(w, r, bi.URL())
}

func (s *Server) renderInstanceForm(w http.ResponseWriter, r *http.Request, form app.InstanceForm, invalid app.ValidationErrors) error {
	opts, err := s.app.InstanceFormOptions(r.Context())
	if err != nil {
		return err
	}
	data := instanceFormView{Form: form, Options: opts}
	return s.render(w, http.StatusOK, "bookinstance_form", page{Title: "Create BookInstance", Errors: invalid, Data: data})
}

// genres

func (s *Server) handleGenreList(w http.ResponseWriter, r *http.Request) error {
	genres, err := s.app.ListGenres(r.Context())
	if err != nil {
		return err
	}
	return s.render(w, http.StatusOK, "genre_list", page{Title: "Genre List", Data: genres})
}

func (s *Server) handleGenreDetail(w http.ResponseWriter, r *http.Request) error {
	detail, err := s.app.GenreDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return s.render(w, http.StatusOK, "genre_detail", page{Title: "Genre Detail", Data: detail})
}

func (s *Server) handleGenreCreateForm(w http.ResponseWriter, _ *http.Request) error {
	return s.render(w, http.StatusOK, "genre_form", page{Title: "Create Genre", Data: app.GenreForm{}})
}

func (s *Server) handleGenreCreate(w http.ResponseWriter, r *http.Request) error {
	if err := s.parseForm(w, r); err != nil {
		return err
	}
	form := app.GenreFormFromValues(r.PostForm)
	genre, err := s.app.CreateGenre(r.Context(), form)
	var invalid app.ValidationErrors
	if errors.As(err, &invalid) {
		return s.render(w, http.StatusOK, "genre_form", page{Title: "Create Genre", Errors: invalid, Data: form})
	}
	if err != nil {
		return err
	}
	return redirect(w, r, genre.URL())
}

// parseForm reads url-encoded and multipart bodies, capped at maxUploadBytes.
// Any body that cannot be read in full is a bad request.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	var err error
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(s.maxUploadBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return fmt.Errorf("%w: invalid form data: %v", errBadRequest, err)
	}
	return nil
}

// coverUpload returns the submitted cover, or nil when covers are disabled or
// none was chosen. The returned func closes the file.
func (s *Server) coverUpload(r *http.Request) (*app.Upload, func(), error) {
	noop := func() {}
	if !s.app.CoversEnabled() || r.MultipartForm == nil {
		return nil, noop, nil
	}
	file, header, err := r.FormFile("cover")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, fmt.Errorf("%w: read cover: %v", errBadRequest, err)
	}
	if header.Size == 0 {
		file.Close()
		return nil, noop, nil
	}
	return &app.Upload{
		Filename:    header.Filename,
		ContentType: partContentType(header),
		Size:        header.Size,
		Body:        file,
	}, func() { file.Close() }, nil
}

func partContentType(h *multipart.FileHeader) string {
	return h.Header.Get("Content-Type")
}
