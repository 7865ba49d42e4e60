package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/analytics"
	"github.com/example/trig-gallery/internal/platform/api"
	"github.com/example/trig-gallery/internal/platform/httpserver"
	"github.com/example/trig-gallery/services/gallery/internal/paginator"
)

// GetHistory handles GET /v1/gallery/history
func GetHistory(reg *paginator.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := reg.History(visitor(r)).Diagnostics(r.Context())
		api.WriteJSON(w, http.StatusOK, d)
	}
}

// ClearHistory handles DELETE /v1/gallery/history. The visitor's sessions
// restart first, which waits out commits already writing, then the history
// is deleted and other instances are told through SubjectHistoryCleared.
func ClearHistory(reg *paginator.Registry, pub *analytics.Publisher, instance string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vid := visitor(r)
		n := reg.ResetVisitor(vid)
		reg.History(vid).Clear(r.Context())
		pub.Publish(analytics.SubjectHistoryCleared, vid, map[string]any{"instance": instance})
		httpserver.Logger(r.Context(), log).Info("history cleared", zap.String("visitor_id", vid), zap.Int("sessions_reset", n))
		w.WriteHeader(http.StatusNoContent)
	}
}

// CompactHistory handles POST /v1/gallery/history/compact
func CompactHistory(reg *paginator.Registry, pub *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vid := visitor(r)
		res := reg.History(vid).Compact(r.Context())
		pub.Publish(analytics.SubjectHistoryCompacted, vid, map[string]any{
			"before": res.Before,
			"after":  res.After,
		})
		api.WriteJSON(w, http.StatusOK, res)
	}
}
