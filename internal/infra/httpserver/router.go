package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/mlr-studio/internal/application"
	appanalysis "github.com/bryanwahyu/mlr-studio/internal/application/analysis"
	appguide "github.com/bryanwahyu/mlr-studio/internal/application/guidelines"
	appimages "github.com/bryanwahyu/mlr-studio/internal/application/images"
	appprompts "github.com/bryanwahyu/mlr-studio/internal/application/prompts"
	appuploads "github.com/bryanwahyu/mlr-studio/internal/application/uploads"
	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
	"github.com/bryanwahyu/mlr-studio/internal/domain/analysis"
	"github.com/bryanwahyu/mlr-studio/internal/domain/guidelines"
	"github.com/bryanwahyu/mlr-studio/internal/domain/images"
	"github.com/bryanwahyu/mlr-studio/internal/domain/uploads"
	"github.com/bryanwahyu/mlr-studio/internal/middleware"
)

type RateLimit struct {
	Requests int
	Window   time.Duration
	Disabled bool
}

// Deps holds everything the router serves.
type Deps struct {
	Guidelines *appguide.Service
	Prompts    *appprompts.Service
	Producer   *appimages.Producer
	Browser    *appimages.Browser
	Analysis   *appanalysis.Service
	Uploads    *appuploads.Service

	Auth        middleware.Authenticator
	RateLimit   RateLimit
	Health      map[string]middleware.HealthChecker
	CORSOrigins []string
	Clock       application.Clock
}

type Router struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = application.SystemClock{}
	}
	r := &Router{Deps: d}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(d.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.RequireUser(d.Auth))
		rt.Use(middleware.RateLimit(d.RateLimit.Requests, d.RateLimit.Window, d.RateLimit.Disabled))

		rt.Get("/guidelines", r.wrap(r.handleGuidelines))
		rt.Get("/guidelines/schema", r.wrap(r.handleGuidelineSchema))
		rt.Put("/guidelines/{key}", r.wrap(r.handleSetGuideline))
		rt.Post("/guidelines/reset", r.wrap(r.handleResetGuidelines))

		rt.Post("/prompts/image", r.wrap(r.handleImagePrompt))
		rt.Post("/prompts/slide", r.wrap(r.handleSlidePrompt))
		rt.Post("/slides", r.wrap(r.handleSlides))
		rt.Post("/chat", r.wrap(r.handleChat))

		rt.Post("/images/generate", r.wrap(r.handleGenerate))
		rt.Get("/images", r.wrap(r.handleListImages))
		rt.Post("/images/select", r.wrap(r.handleSelectImage))
		rt.Get("/images/selected", r.wrap(r.handleSelectedImage))
		rt.Post("/images/refresh", r.wrap(r.handleRefreshImages))
		rt.Post("/images/selected/review", r.wrap(r.handleReviewSelected))

		rt.Post("/analysis", r.wrap(r.handleAnalyze))

		rt.Post("/uploads/presign", r.wrap(r.handlePresignUpload))
		rt.Get("/uploads/history", r.wrap(r.handleHistory))
		rt.Delete("/uploads/{id}", r.wrap(r.handleDeleteUpload))
		rt.Post("/documents", r.wrap(r.handleCreateDocument))
		rt.Patch("/documents/{id}", r.wrap(r.handleUpdateDocument))
		rt.Get("/documents/{id}", r.wrap(r.handleGetDocument))
		rt.Post("/documents/{id}/chunks", r.wrap(r.handleProcessDocument))
		rt.Get("/documents/{id}/chunks", r.wrap(r.handleListChunks))
		rt.Post("/documents/search", r.wrap(r.handleSearchChunks))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status := statusFor(err)
			if status >= 500 {
				log.Printf("event=request_failed path=%s request_id=%s err=%v", req.URL.Path, chimw.GetReqID(req.Context()), err)
			}
			writeError(w, status, err)
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sql.ErrNoRows),
		errors.Is(err, uploads.ErrNotFound),
		errors.Is(err, images.ErrNotFound),
		errors.Is(err, images.ErrNotSelected):
		return http.StatusNotFound
	case errors.Is(err, uploads.ErrForeignObject):
		return http.StatusForbidden
	case errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, application.ErrInvalidInput),
		errors.Is(err, guidelines.ErrUnknownKey),
		errors.Is(err, uploads.ErrInvalidStatus),
		errors.Is(err, images.ErrUnresolvableLocator):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrUpstreamModel),
		errors.Is(err, analysis.ErrParse),
		errors.Is(err, analysis.ErrValidation):
		return http.StatusBadGateway
	case errors.Is(err, uploads.ErrChunksUnavailable):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode reads a JSON body; malformed input is a client error.
func decode(req *http.Request, v any) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: body: %v", application.ErrInvalidInput, err)
	}
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", application.ErrInvalidInput, err)
}

// userID is set by RequireUser for every /v1 route.
func userID(req *http.Request) string {
	u, _ := middleware.CurrentUser(req.Context())
	return u.ID
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
