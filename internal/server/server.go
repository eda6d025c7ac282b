package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"locallibrary/internal/app"
	"locallibrary/internal/util"
)

const defaultMaxUploadBytes = 10 * 1024 * 1024

var errBadRequest = errors.New("bad request")

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
	// TemplatesDir overrides the embedded views when set.
	TemplatesDir string
}

// Server exposes the catalog pages.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	views          *views
	trusted        *util.TrustedProxies
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	v, err := loadViews(cfg.TemplatesDir)
	if err != nil {
		return nil, err
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		views:          v,
		trusted:        cfg.TrustedProxies,
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("catalog", s.trusted, util.WithSecurityHeaders(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /{$}", http.RedirectHandler("/catalog", http.StatusFound))
	s.mux.Handle("GET /catalog", s.handle(s.handleIndex))

	// authors
	s.mux.Handle("GET /catalog/authors", s.handle(s.handleAuthorList))
	s.mux.Handle("GET /catalog/author/create", s.handle(s.handleAuthorCreateForm))
	s.mux.Handle("POST /catalog/author/create", s.handle(s.handleAuthorCreate))
	s.mux.Handle("GET /catalog/author/{id}", s.handle(s.handleAuthorDetail))
	s.mux.Handle("GET /catalog/author/{id}/delete", s.handle(s.handleAuthorDeleteForm))
	s.mux.Handle("POST /catalog/author/{id}/delete", s.handle(s.handleAuthorDelete))
	s.mux.Handle("GET /catalog/author/{id}/update", s.handle(notImplemented("Author update GET")))
	s.mux.Handle("POST /catalog/author/{id}/update", s.handle(notImplemented("Author update POST")))

	// books
	s.mux.Handle("GET /catalog/books", s.handle(s.handleBookList))
	s.mux.Handle("GET /catalog/book/create", s.handle(s.handleBookCreateForm))
	s.mux.Handle("POST /catalog/book/create", s.handle(s.handleBookCreate))
	s.mux.Handle("GET /catalog/book/{id}", s.handle(s.handleBookDetail))
	s.mux.Handle("GET /catalog/book/{id}/delete", s.handle(notImplemented("Book delete GET")))
	s.mux.Handle("POST /catalog/book/{id}/delete", s.handle(notImplemented("Book delete POST")))
	s.mux.Handle("GET /catalog/book/{id}/update", s.handle(s.handleBookUpdateForm))
	s.mux.Handle("POST /catalog/book/{id}/update", s.handle(s.handleBookUpdate))

	// book copies
	s.mux.Handle("GET /catalog/bookinstances", s.handle(s.handleInstanceList))
	s.mux.Handle("GET /catalog/bookinstance/create", s.handle(s.handleInstanceCreateForm))
	s.mux.Handle("POST /catalog/bookinstance/create", s.handle(s.handleInstanceCreate))
	s.mux.Handle("GET /catalog/bookinstance/{id}", s.handle(s.handleInstanceDetail))
	s.mux.Handle("GET /catalog/bookinstance/{id}/delete", s.handle(notImplemented("BookInstance delete GET")))
	s.mux.Handle("POST /catalog/bookinstance/{id}/delete", s.handle(notImplemented("BookInstance delete POST")))
	s.mux.Handle("GET /catalog/bookinstance/{id}/update", s.handle(notImplemented("BookInstance update GET")))
	s.mux.Handle("POST /catalog/bookinstance/{id}/update", s.handle(notImplemented("BookInstance update POST")))

	// genres
	s.mux.Handle("GET /catalog/genres", s.handle(s.handleGenreList))
	s.mux.Handle("GET /catalog/genre/create", s.handle(s.handleGenreCreateForm))
	s.mux.Handle("POST /catalog/genre/create", s.handle(s.handleGenreCreate))
	s.mux.Handle("GET /catalog/genre/{id}", s.handle(s.handleGenreDetail))
	s.mux.Handle("GET /catalog/genre/{id}/delete", s.handle(notImplemented("Genre delete GET")))
	s.mux.Handle("POST /catalog/genre/{id}/delete", s.handle(notImplemented("Genre delete POST")))
	s.mux.Handle("GET /catalog/genre/{id}/update", s.handle(notImplemented("Genre update GET")))
	s.mux.Handle("POST /catalog/genre/{id}/update", s.handle(notImplemented("Genre update POST")))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlerFunc is a page handler that reports failures instead of writing them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) handle(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			s.writeError(w, r, err)
		}
	})
}

func notImplemented(what string) handlerFunc {
	return func(http.ResponseWriter, *http.Request) error {
		return fmt.Errorf("%s: %w", what, app.ErrNotImplemented)
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, app.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders the error page. Server-side failures are logged and
// their detail withheld from the response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	msg := err.Error()
	logger := util.LoggerFromContext(r.Context())
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		logger.Error("request failed", "status", status, "err", err)
		msg = http.StatusText(status)
	} else {
		logger.Info("request rejected", "status", status, "err", err)
	}
	data := errorView{Status: status, StatusText: http.StatusText(status), Message: msg}
	if renderErr := s.render(w, status, "error", page{Title: http.StatusText(status), Data: data}); renderErr != nil {
		logger.Error("render error page failed", "err", renderErr)
		http.Error(w, http.StatusText(status), status)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// redirect sends the browser to location after a successful form post.
func redirect(w http.ResponseWriter, r *http.Request, location string) error {
	http.Redirect(w, r, location, http.StatusSeeOther)
	return nil
}
