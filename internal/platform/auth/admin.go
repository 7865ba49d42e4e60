package auth

import (
	"net/http"
	"strings"

	"github.com/example/trig-gallery/internal/platform/api"
	"github.com/example/trig-gallery/internal/platform/httpserver"
)

// RequireRole allows the request only if an earlier middleware injected the
// given role (case-insensitive) into the context.
func RequireRole(role string) func(next http.Handler) http.Handler {
	want := strings.ToLower(strings.TrimSpace(role))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ := RoleFromContext(r.Context())
			if strings.ToLower(strings.TrimSpace(got)) != want {
				api.Forbidden(w, "FORBIDDEN", "Role "+want+" required", httpserver.RequestIDFromContext(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin guards the history administration routes.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole("admin")(next)
}
