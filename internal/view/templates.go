package view

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agristock/agristock/internal/shared"
	"github.com/agristock/agristock/web"
)

// ShellSource provides the data rendered by the shared header and footer.
type ShellSource interface {
	ShellData(ctx context.Context) any
}

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	shell     ShellSource
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Viewer      shared.Viewer
	Shell       any
	Data        any
}

// NewEngine parses the embedded templates once at startup.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(funcMap()).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*.html",
	)
	if err != nil {
		return nil, fmt.Errorf("view: parse templates: %w", err)
	}
	return &Engine{templates: tpl}, nil
}

// WithShell sets the source used by RenderPage for header and footer data.
func (e *Engine) WithShell(src ShellSource) *Engine {
	if e != nil {
		e.shell = src
	}
	return e
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes a named template and writes it with status.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("view: render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderPage renders a page wrapped in the application shell. The viewer and
// current path come from the request; the shell is read through the ShellSource.
func (e *Engine) RenderPage(w http.ResponseWriter, r *http.Request, name string, data TemplateData) error {
	return e.RenderPageStatus(w, r, http.StatusOK, name, data)
}

// RenderPageStatus is RenderPage with an explicit status code, used when a form
// is re-rendered with validation errors.
func (e *Engine) RenderPageStatus(w http.ResponseWriter, r *http.Request, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	if !data.Viewer.Authenticated() {
		data.Viewer = shared.ViewerFromContext(r.Context())
	}
	if data.CurrentPath == "" {
		data.CurrentPath = r.URL.Path
	}
	if data.Shell == nil && e.shell != nil {
		data.Shell = e.shell.ShellData(r.Context())
	}
	return e.RenderStatus(w, status, name, data)
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"isoDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"qty": func(v float64) string {
			return strconv.FormatFloat(v, 'f', -1, 64)
		},
		"isActive": func(current, prefix string) bool {
			if prefix == "/" {
				return current == "/"
			}
			return strings.HasPrefix(current, prefix)
		},
		"hidden": func(visible bool) template.HTMLAttr {
			if visible {
				return ""
			}
			return "hidden"
		},
	}
}
