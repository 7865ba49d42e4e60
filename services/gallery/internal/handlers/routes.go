package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/analytics"
	"github.com/example/trig-gallery/internal/platform/api"
	"github.com/example/trig-gallery/internal/platform/auth"
	"github.com/example/trig-gallery/internal/platform/httpserver"
	"github.com/example/trig-gallery/internal/platform/logging"
	"github.com/example/trig-gallery/internal/platform/ratelimit"
	"github.com/example/trig-gallery/services/gallery/internal/paginator"
	"github.com/example/trig-gallery/services/gallery/internal/photos"
)

type Deps struct {
	Registry  *paginator.Registry
	Rotator   photos.Rotator
	Publisher *analytics.Publisher
	// Verifier is nil when JWT_SECRET is unset; visitors then come from the
	// X-Visitor-Id header and the admin routes are not mounted.
	Verifier *auth.JWTVerifier
	// Limiter is optional.
	Limiter  *ratelimit.Buckets
	Instance string
	Logger   *zap.Logger
}

// VisitorKey charges rate limits to the resolved visitor, or to the client
// address for anonymous requests.
func VisitorKey(r *http.Request) string {
	if vid, ok := auth.VisitorIDFromContext(r.Context()); ok && vid != auth.AnonymousVisitor {
		return "v:" + vid
	}
	return "ip:" + ratelimit.ClientIP(r)
}

// Mount registers the gallery routes on r.
func Mount(r chi.Router, d Deps) {
	log := logging.OrNop(d.Logger)

	r.Group(func(r chi.Router) {
		r.Use(auth.IdentifyVisitor(d.Verifier))
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}
		r.Get("/v1/gallery", NextPage(d.Registry, log))
		r.Post("/v1/gallery/reset", ResetSession(d.Registry))
		r.Get("/v1/gallery/history", GetHistory(d.Registry))
		r.Delete("/v1/gallery/history", ClearHistory(d.Registry, d.Publisher, d.Instance, log))
		r.Post("/v1/gallery/history/compact", CompactHistory(d.Registry, d.Publisher))
		r.Post("/v1/photos/{photo_id}/rotate", RotatePhoto(d.Rotator, d.Registry, d.Publisher, log))
	})

	if d.Verifier == nil {
		return
	}
	r.Route("/v1/admin/history/{visitor_id}", func(r chi.Router) {
		r.Use(auth.RequireVisitor(*d.Verifier))
		r.Use(auth.RequireAdmin)
		r.Use(actAsVisitor)
		r.Get("/", GetHistory(d.Registry))
		r.Delete("/", ClearHistory(d.Registry, d.Publisher, d.Instance, log))
		r.Post("/compact", CompactHistory(d.Registry, d.Publisher))
	})
}

// actAsVisitor lets an admin operate on the history named in the path.
func actAsVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vid := strings.TrimSpace(chi.URLParam(r, "visitor_id"))
		if vid == "" {
			api.BadRequest(w, "MISSING_VISITOR", "visitor_id is required", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithVisitorID(r.Context(), vid)))
	})
}
