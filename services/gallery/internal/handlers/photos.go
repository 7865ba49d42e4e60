package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/analytics"
	"github.com/example/trig-gallery/internal/platform/api"
	"github.com/example/trig-gallery/internal/platform/auth"
	"github.com/example/trig-gallery/internal/platform/httpserver"
	"github.com/example/trig-gallery/services/gallery/internal/paginator"
	"github.com/example/trig-gallery/services/gallery/internal/photos"
)

const tokenLeeway = 30 * time.Second

type rotateRequest struct {
	Angle int `json:"angle"`
}

// RotatePhoto handles POST /v1/photos/{photo_id}/rotate. The caller's bearer
// token is forwarded to the photo API and the returned record is patched into
// every cached page. Viewed history is not touched.
func RotatePhoto(rot photos.Rotator, reg *paginator.Registry, pub *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "photo_id")), 10, 64)
		if err != nil || id <= 0 {
			api.BadRequest(w, "INVALID_ID", "photo_id must be a positive integer", rid, nil)
			return
		}
		tok, ok := auth.BearerTokenFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHENTICATED", "Bearer token required", rid)
			return
		}
		if err := auth.CheckExpiry(tok, time.Now(), tokenLeeway); err != nil {
			api.Unauthorized(w, "TOKEN_EXPIRED", "Bearer token expired", rid)
			return
		}

		var req rotateRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}

		updated, err := rot.RotatePhoto(r.Context(), id, req.Angle, tok)
		if err != nil {
			var fe *photos.FetchError
			switch {
			case errors.Is(err, photos.ErrInvalidAngle):
				api.BadRequest(w, "INVALID_ANGLE", "angle must be 90, 180 or 270", rid, map[string]any{"angle": req.Angle})
			case errors.As(err, &fe) && (fe.Status == http.StatusUnauthorized || fe.Status == http.StatusForbidden):
				api.WriteError(w, fe.Status, "UPSTREAM_REFUSED", "Photo service refused the rotation", rid, nil)
			case errors.As(err, &fe) && fe.Status == http.StatusNotFound:
				api.NotFound(w, "PHOTO_NOT_FOUND", "Photo not found", rid)
			default:
				httpserver.Logger(r.Context(), log).Warn("rotate photo failed", zap.Int64("photo_id", id), zap.Error(err))
				api.BadGateway(w, "UPSTREAM_ERROR", "Photo service unavailable", rid, nil)
			}
			return
		}

		n := reg.PatchPhoto(updated)
		pub.Publish(analytics.SubjectPhotoRotated, visitor(r), map[string]any{
			"photo_id": id,
			"angle":    req.Angle,
		})
		httpserver.Logger(r.Context(), log).Debug("photo rotated", zap.Int64("photo_id", id), zap.Int("sessions_patched", n))
		api.WriteJSON(w, http.StatusOK, updated)
	}
}
