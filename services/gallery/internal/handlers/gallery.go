package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/api"
	"github.com/example/trig-gallery/internal/platform/httpserver"
	"github.com/example/trig-gallery/services/gallery/internal/paginator"
	"github.com/example/trig-gallery/services/gallery/internal/photos"
)

type pageResponse struct {
	Items           []photos.Photo `json:"items"`
	Total           int            `json:"total"`
	Offset          int            `json:"offset"`
	Limit           int            `json:"limit"`
	Mode            paginator.Mode `json:"mode"`
	HasMore         bool           `json:"has_more"`
	NextOffset      *int           `json:"next_offset"`
	SmartSkipOffset *int           `json:"smart_skip_offset"`
	State           string         `json:"state"`
	ExhaustedReason string         `json:"exhausted_reason,omitempty"`
	SkipAttempts    int            `json:"skip_attempts"`
}

// NextPage handles GET /v1/gallery?mode=unseen|all
func NextPage(reg *paginator.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		m, ok := mode(w, r, rid)
		if !ok {
			return
		}
		s := reg.Session(visitor(r), m)

		res, err := s.FetchNext(r.Context())
		if err != nil {
			writeFetchError(w, rid, httpserver.Logger(r.Context(), log), err)
			return
		}
		api.WriteJSON(w, http.StatusOK, pageResponse{
			Items:           res.Items,
			Total:           res.Total,
			Offset:          res.Offset,
			Limit:           res.Limit,
			Mode:            res.Mode,
			HasMore:         res.HasMore,
			NextOffset:      res.NextOffset,
			SmartSkipOffset: res.SmartSkipOffset,
			State:           s.State().String(),
			ExhaustedReason: string(s.ExhaustReason()),
			SkipAttempts:    s.Attempts(),
		})
	}
}

// ResetSession handles POST /v1/gallery/reset?mode=
func ResetSession(reg *paginator.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		m, ok := mode(w, r, rid)
		if !ok {
			return
		}
		reg.Reset(visitor(r), m)
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeFetchError(w http.ResponseWriter, rid string, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		log.Debug("gallery fetch cancelled", zap.Error(err))
		api.Unavailable(w, "CANCELLED", "Request cancelled", rid)
	case photos.IsUpstream(err):
		log.Warn("photo api fetch failed", zap.Error(err))
		api.BadGateway(w, "UPSTREAM_ERROR", "Photo service unavailable, reload to retry", rid, nil)
	case errors.Is(err, paginator.ErrBusy):
		api.Conflict(w, "FETCH_IN_PROGRESS", "A page is already being fetched", rid, nil)
	case errors.Is(err, paginator.ErrStale):
		api.Conflict(w, "SESSION_RESET", "The gallery was reset while fetching", rid, nil)
	default:
		log.Error("gallery fetch failed", zap.Error(err))
		api.Internal(w, rid)
	}
}
