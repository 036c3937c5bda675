package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
	"auditcache/internal/ports"
	"auditcache/internal/usecase/capture"
)

const maxEventBodyBytes = 1 << 20

type captureHTTPService interface {
	Capture(context.Context, capture.DeletionEvent) (capture.CaptureResult, error)
	IngestModeration(context.Context, audit.ModerationNotification) (capture.ModerationResult, error)
	Restore(context.Context, string) (audit.AuditRecord, error)
}

type captureHTTPHandler struct {
	svc captureHTTPService
}

type httpErrorResponse struct {
	Error string `json:"error"`
}

// newServeHandler mounts the gateway ingress, restore lookup, feed and
// metrics endpoints. feed and metrics may be nil.
func newServeHandler(svc captureHTTPService, feed http.Handler, metrics http.Handler) http.Handler {
	h := &captureHTTPHandler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/events/deletions", h.handleDeletion)
		r.Post("/events/automod", h.handleAutoMod)
		r.Get("/restore/{reference}", h.handleRestore)
		if feed != nil {
			r.Method(http.MethodGet, "/feed", feed)
		}
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.Info(ctx, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(started)),
		)
	})
}

func (h *captureHTTPHandler) handleDeletion(w http.ResponseWriter, r *http.Request) {
	var event capture.DeletionEvent
	if !decodeBody(w, r, &event) {
		return
	}

	out, err := h.svc.Capture(r.Context(), event)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (h *captureHTTPHandler) handleAutoMod(w http.ResponseWriter, r *http.Request) {
	var n audit.ModerationNotification
	if !decodeBody(w, r, &n) {
		return
	}

	out, err := h.svc.IngestModeration(r.Context(), n)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (h *captureHTTPHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.Restore(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, httpErrorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

// writeServiceError maps usecase errors to HTTP status codes. Lookups that
// miss and malformed references are reported separately.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, audit.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, audit.ErrInvalidReference):
		status, message = http.StatusBadRequest, "invalid reference"
	case errors.Is(err, capture.ErrModerationDisabled):
		status, message = http.StatusNotFound, "moderation ingestion is disabled"
	case errors.Is(err, audit.ErrNormalization), errors.Is(err, audit.ErrInvalidRecord):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ports.ErrStorageUnavailable):
		status, message = http.StatusServiceUnavailable, "storage unavailable"
	}

	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
	}
	writeJSON(w, status, httpErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
