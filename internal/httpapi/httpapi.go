// Package httpapi mounts every spec.md §6 route from a single composition
// root, the way the teacher's Server.setupRoutes mounts all handleXxx
// methods onto one http.ServeMux — except here each concern is its own
// package with its own chi.Router sub-router, following the split the
// teacher's own internal/auth and internal/watchhistory sub-routers model.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/mediaserver/internal/admin"
	"github.com/JustinTDCT/mediaserver/internal/auth"
	"github.com/JustinTDCT/mediaserver/internal/library"
	"github.com/JustinTDCT/mediaserver/internal/network"
	"github.com/JustinTDCT/mediaserver/internal/progress"
	"github.com/JustinTDCT/mediaserver/internal/search"
	"github.com/JustinTDCT/mediaserver/internal/streamhttp"
	"github.com/JustinTDCT/mediaserver/internal/subtitles"
	"github.com/JustinTDCT/mediaserver/internal/watch"
)

// Deps collects every already-constructed package this composition root
// wires together. Built once in cmd/mediaserver/main.go.
type Deps struct {
	Issuer      *auth.Issuer
	AuthHandler *auth.Handler
	Middleware  *auth.Middleware

	Library    *library.Handlers
	Streamer   *streamhttp.Streamer
	Subtitles  *subtitles.Handlers
	Network    *network.Handlers
	Watch      *watch.Handlers
	Search     *search.Handler
	Admin      *admin.Handlers
	Progress   *progress.Hub
}

// NewRouter builds the full chi.Router, wrapped in the security-headers and
// CORS middleware every response (including errors) passes through, exactly
// the order the teacher's ListenAndServe wrapper applies them.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/api/v1/ws", d.Progress.ServeWS(d.Issuer))

	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/auth", d.AuthHandler.Router())

		api.Group(func(authed chi.Router) {
			authed.Use(d.Middleware.RequireAuth)

			authed.Mount("/search", d.Search.Router())

			authed.Route("/library", func(lib chi.Router) {
				d.Library.RegisterRoutes(lib)
			})

			authed.Route("/stream", func(stream chi.Router) {
				d.Streamer.RegisterRoutes(stream)
			})

			authed.Route("/subtitles", func(subs chi.Router) {
				d.Subtitles.RegisterRoutes(subs)
			})

			authed.Route("/watch", func(watchR chi.Router) {
				d.Watch.RegisterRoutes(watchR)
			})

			authed.Group(func(adminOnly chi.Router) {
				adminOnly.Use(d.Middleware.RequireAdmin)

				adminOnly.Route("/network", func(net chi.Router) {
					d.Network.RegisterRoutes(net)
				})

				adminOnly.Route("/admin", func(adm chi.Router) {
					d.Admin.RegisterRoutes(adm)
				})
			})
		})
	})

	return securityHeaders(cors(r))
}

// securityHeaders adds standard hardening headers to every response,
// mirroring the teacher's securityHeadersMiddleware.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		w.Header().Set("X-XSS-Protection", "0")
		next.ServeHTTP(w, r)
	})
}

// cors handles preflight and response headers globally, mirroring the
// teacher's corsMiddleware — a self-hosted single-household server has no
// fixed origin allowlist to enforce, so any Origin is echoed back.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
