package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gocorr/internal"
	"gocorr/internal/analysis"
	"gocorr/internal/errors"
	"gocorr/ports"
)

// App is the HTTP surface over the analysis service.
type App struct {
	router  *chi.Mux
	service *analysis.Service
	logger  *internal.Logger
}

func NewApp(service *analysis.Service, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	app := &App{
		router:  chi.NewRouter(),
		service: service,
		logger:  logger,
	}
	app.setupMiddleware()
	app.setupRoutes()
	return app
}

func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)
	a.router.Post("/api/v1/correlation", a.handleCorrelation)
	a.router.Post("/api/v1/describe", a.handleDescribe)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCorrelation runs one correlation analysis. The result table is
// markdown by default; ?format=html converts it with gomarkdown.
func (a *App) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}

	table, err := a.service.AnalyzeCorrelation(r.Context(), req)
	if err != nil {
		a.logger.Warn("[API] correlation analysis failed: %v", err)
		writeError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "html" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"format": "html",
			"result": renderHTML(table),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"format": "markdown",
		"result": table,
	})
}

func (a *App) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source ports.Source `json:"data_source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}

	profiles, report, err := a.service.Describe(r.Context(), req.Source)
	if err != nil {
		a.logger.Warn("[API] describe failed: %v", err)
		writeError(w, err)
		return
	}

	result := report
	format := "markdown"
	if r.URL.Query().Get("format") == "html" {
		result = renderHTML(report)
		format = "html"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"format":  format,
		"result":  result,
		"columns": profiles,
	})
}

// renderHTML converts a markdown table report to HTML.
func renderHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return string(markdown.ToHTML([]byte(md), p, renderer))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps application error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeValidationError, errors.CodeColumnMapping:
		status = http.StatusBadRequest
	case errors.CodeDataLoad:
		status = http.StatusUnprocessableEntity
	case errors.CodeExternalService:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
