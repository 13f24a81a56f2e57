// Package handler implements the HTTP surface of the console: server-rendered
// views backed by the registry client, plus the operational endpoints.
package handler

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/stvsteam/regconsole/internal/middleware"
	"github.com/stvsteam/regconsole/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageNames lists every page template. Each is parsed together with the
// shared layout at startup, so a broken template fails the boot instead of
// the first request.
var pageNames = []string{
	"landing",
	"login",
	"register",
	"dashboard",
	"profile",
	"stolen",
	"verify_driver",
	"verify_plate",
}

// viewRenderer holds the parsed page templates.
type viewRenderer struct {
	pages map[string]*template.Template
}

// newViewRenderer parses all embedded templates.
func newViewRenderer() (*viewRenderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &viewRenderer{pages: pages}, nil
}

// render writes the page with the given status. Render failures after the
// header is written can only be logged.
func (v *viewRenderer) render(w http.ResponseWriter, status int, page string, data any) {
	t, ok := v.pages[page]
	if !ok {
		slog.Error("unknown view", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render view",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// pageData carries the fields every view shares. Page view structs embed it.
type pageData struct {
	Title     string
	Session   *model.Session
	IsAdmin   bool
	IsDriver  bool
	CSRFToken string
	Flash     string
	Error     string
}

// newPageData builds the shared view fields from the request: the session
// snapshot injected by the guard and the CSRF token for forms.
func newPageData(r *http.Request, title string) pageData {
	pd := pageData{
		Title:     title,
		Session:   middleware.SessionFromContext(r.Context()),
		CSRFToken: middleware.CSRFTokenFromRequest(r),
	}
	if pd.Session != nil {
		pd.IsAdmin = pd.Session.Role == model.RoleAdmin
		pd.IsDriver = pd.Session.Role == model.RoleDriver
	}
	return pd
}
