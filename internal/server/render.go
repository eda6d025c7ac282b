package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"locallibrary/internal/app"
	"locallibrary/pkg/domain"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const baseTemplate = "base.html"

// page is the value every view executes against.
type page struct {
	Title  string
	Errors app.ValidationErrors
	Data   any
}

type errorView struct {
	Status     int
	StatusText string
	Message    string
}

// views holds one template set per page: the shared layout plus that page's "body".
type views struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"formatDate": domain.FormatDate,
	"statusClass": func(status domain.InstanceStatus) string {
		switch status {
		case domain.StatusAvailable:
			return "status-available"
		case domain.StatusMaintenance:
			return "status-maintenance"
		default:
			return "status-other"
		}
	},
}

func loadViews(dir string) (*views, error) {
	var fsys fs.FS
	if strings.TrimSpace(dir) != "" {
		fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return nil, fmt.Errorf("open embedded templates: %w", err)
		}
		fsys = sub
	}
	base, err := template.New(baseTemplate).Funcs(templateFuncs).ParseFS(fsys, baseTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	names, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	v := &views{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		if name == baseTemplate {
			continue
		}
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.New("body").Parse(string(src)); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		v.pages[strings.TrimSuffix(name, path.Ext(name))] = t
	}
	return v, nil
}

// render executes the named page into a buffer first so a template failure
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, status int, name string, p page) error {
	t, ok := s.views.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, baseTemplate, p); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}
