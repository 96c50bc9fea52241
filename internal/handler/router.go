package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/casebook/internal/repository"
)

// Router assembles the HTTP routing for the Casebook API.
type Router struct {
	authHandler     *AuthHandler
	caseHandler     *CaseHandler
	taxonomyHandler *TaxonomyHandler
	favoriteHandler *FavoriteHandler
	authMiddleware  func(http.Handler) http.Handler
	db              repository.DatabaseHealth
	logger          zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthHandler     *AuthHandler
	CaseHandler     *CaseHandler
	TaxonomyHandler *TaxonomyHandler
	FavoriteHandler *FavoriteHandler
	AuthMiddleware  func(http.Handler) http.Handler
	DB              repository.DatabaseHealth
	Logger          zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		authHandler:     config.AuthHandler,
		caseHandler:     config.CaseHandler,
		taxonomyHandler: config.TaxonomyHandler,
		favoriteHandler: config.FavoriteHandler,
		authMiddleware:  config.AuthMiddleware,
		db:              config.DB,
		logger:          config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.requestLogger)

	// Health check (no auth)
	r.Get("/health", rt.handleHealth)

	// Public auth routes
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", rt.authHandler.Register)
		r.Post("/login", rt.authHandler.Login)
		r.Post("/password-reset", rt.authHandler.ForgotPassword)
		r.Post("/password-reset/confirm", rt.authHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware)
			r.Get("/me", rt.authHandler.Me)
		})
	})

	// Authenticated API
	r.Route("/api", func(r chi.Router) {
		r.Use(rt.authMiddleware)

		r.Route("/cases", func(r chi.Router) {
			r.Post("/", rt.caseHandler.Submit)
			r.Get("/", rt.caseHandler.List)
			r.Get("/incomplete", rt.caseHandler.ListIncomplete)
			r.Get("/{caseID}", rt.caseHandler.Get)
			r.Patch("/{caseID}", rt.caseHandler.Update)
			r.Delete("/{caseID}", rt.caseHandler.Delete)
			r.Post("/{caseID}/images", rt.caseHandler.AddImages)
		})

		r.Delete("/images/{imageID}", rt.caseHandler.DeleteImage)
		r.Get("/patients", rt.caseHandler.ListPatients)

		r.Route("/taxonomy", func(r chi.Router) {
			r.Get("/", rt.taxonomyHandler.Tree)
			r.Post("/{level}", rt.taxonomyHandler.Create)
			r.Get("/{level}", rt.taxonomyHandler.List)
			r.Patch("/{level}/{nodeID}", rt.taxonomyHandler.Rename)
			r.Delete("/{level}/{nodeID}", rt.taxonomyHandler.Delete)
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", rt.favoriteHandler.List)
			r.Post("/", rt.favoriteHandler.Add)
			r.Delete("/{imageID}", rt.favoriteHandler.Remove)
		})
	})

	return r
}

// handleHealth handles health check requests. The database is pinged so load
// balancers stop routing to an instance that lost its backend.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.db != nil {
		if err := rt.db.Ping(r.Context()); err != nil {
			rt.logger.Error().Err(err).Msg("health check database ping failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// requestLogger logs each request with method, path, status and duration.
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request completed")
	})
}
