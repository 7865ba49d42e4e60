package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/example/trig-gallery/internal/platform/api"
	"github.com/example/trig-gallery/internal/platform/auth"
	"github.com/example/trig-gallery/services/gallery/internal/paginator"
)

const maxRequestBodyBytes = 1 << 10

// decodeJSON reads up to maxRequestBodyBytes from r.Body and decodes JSON into dst.
// On failure it writes a 400 response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return false
	}
	return true
}

func visitor(r *http.Request) string {
	if vid, ok := auth.VisitorIDFromContext(r.Context()); ok && vid != "" {
		return vid
	}
	return auth.AnonymousVisitor
}

// mode parses ?mode=, writing a 400 on failure.
func mode(w http.ResponseWriter, r *http.Request, rid string) (paginator.Mode, bool) {
	m, err := paginator.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		api.BadRequest(w, "INVALID_MODE", "mode must be unseen or all", rid, map[string]any{"mode": r.URL.Query().Get("mode")})
		return "", false
	}
	return m, true
}
