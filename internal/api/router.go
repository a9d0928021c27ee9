package api

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/itemsvc/internal/auth"
	"github.com/erazemk/itemsvc/internal/imaging"
	"github.com/erazemk/itemsvc/internal/metrics"
	"github.com/erazemk/itemsvc/internal/model"
)

// Version is reported by /health.
const Version = "1.0.0"

// Options wires the router's dependencies.
type Options struct {
	DB    *sqlx.DB
	Items ItemRepository

	// Signer enables bearer-token auth on /api/v1. Nil leaves the item routes open.
	Signer *auth.Signer

	// Metrics, when set, instruments requests and serves GET /metrics.
	Metrics *metrics.Metrics

	Image   imaging.Options
	Version string
	Started time.Time
}

// NewRouter creates the HTTP handler with all endpoints and middleware registered.
func NewRouter(opts Options) http.Handler {
	if opts.Version == "" {
		opts.Version = Version
	}
	if opts.Started.IsZero() {
		opts.Started = time.Now()
	}

	mux := http.NewServeMux()

	healthHandler := &HealthHandler{DB: opts.DB, Version: opts.Version, Started: opts.Started}
	itemsHandler := &ItemsHandler{Items: opts.Items, Image: opts.Image}

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	read := func(h http.HandlerFunc) http.Handler { return h }
	write := read
	if opts.Signer != nil {
		authHandler := &AuthHandler{DB: opts.DB, Signer: opts.Signer}
		authMW := AuthMiddleware(opts.Signer, opts.DB)
		requireManager := RequireRole(model.RoleManager)

		read = func(h http.HandlerFunc) http.Handler { return authMW(h) }
		write = func(h http.HandlerFunc) http.Handler { return authMW(requireManager(h)) }

		mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
		mux.Handle("POST /api/v1/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
		mux.Handle("PUT /api/v1/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	}

	mux.Handle("GET /api/v1/items", read(itemsHandler.List))
	mux.Handle("POST /api/v1/items", write(itemsHandler.Create))
	mux.Handle("GET /api/v1/items/{id}", read(itemsHandler.Get))
	mux.Handle("PUT /api/v1/items/{id}", write(itemsHandler.Update))
	mux.Handle("DELETE /api/v1/items/{id}", write(itemsHandler.Delete))
	mux.Handle("PUT /api/v1/items/{id}/image", write(itemsHandler.UploadImage))
	mux.Handle("GET /api/v1/items/{id}/image", read(itemsHandler.GetImage))

	// Everything else gets the JSON error envelope instead of a text 404.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, codeNotFound, "Not found", "no route for "+r.Method+" "+r.URL.Path)
	})

	var h http.Handler = mux
	h = RecoverMiddleware(h)
	h = LoggingMiddleware(opts.Metrics)(h)
	h = RequestIDMiddleware(h)
	return h
}
