package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/barter/internal/auth"
	"github.com/erazemk/barter/internal/exchange"
	"github.com/erazemk/barter/internal/model"
	webembed "github.com/erazemk/barter/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

var categoryNames = map[string]string{
	model.CategoryElectronics: "Electronics",
	model.CategoryClothing:    "Clothing",
	model.CategoryBooks:       "Books",
	model.CategorySports:      "Sports",
	model.CategoryFurniture:   "Furniture",
	model.CategoryOther:       "Other",
}

var conditionNames = map[string]string{
	model.ConditionNew:     "New",
	model.ConditionUsed:    "Used",
	model.ConditionLikeNew: "Like new",
}

var statusNames = map[string]string{
	model.StatusPending:  "Pending",
	model.StatusAccepted: "Accepted",
	model.StatusRejected: "Rejected",
}

func lookup(names map[string]string) func(string) string {
	return func(v string) string {
		if name, ok := names[v]; ok {
			return name
		}
		return v
	}
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"categoryName":  lookup(categoryNames),
		"conditionName": lookup(conditionNames),
		"statusName":    lookup(statusNames),
		"formatTime": func(t time.Time) string {
			return t.Local().Format("2006-01-02 15:04")
		},
		"categories": func() []string { return model.Categories },
		"conditions": func() []string { return model.Conditions },
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"login.html",
		"register.html",
		"ads.html",
		"ad_detail.html",
		"ad_form.html",
		"ad_delete.html",
		"my_ads.html",
		"propose.html",
		"proposals.html",
		"proposal_detail.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with an explicit status code, used for
// forms redisplayed with errors.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title       string
	User        *auth.Claims
	Flash       string
	FlashKind   string
	Error       string
	Unread      []model.Notification
	UnreadCount int
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB        *sql.DB
	Exchange  *exchange.Service
	Templates *Templates
	JWTSecret string
	PageSize  int
}
