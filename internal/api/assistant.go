package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/bizassist/internal/assistant"
)

const (
	maxRequestBodySize   = 1 << 20 // 1MB
	internalErrorMessage = "internal error"
)

// Assistant answers one assistant request.
type Assistant interface {
	Handle(ctx context.Context, req assistant.Request) (assistant.Response, error)
}

// HandlerOptions configures NewAssistantHandler.
type HandlerOptions struct {
	// Token enables bearer authentication on the assistant routes when set.
	Token  string
	Logger *slog.Logger
}

// NewAssistantHandler returns the HTTP surface of the assistant. Every
// response carries CORS headers; OPTIONS is answered before routing and
// authentication.
func NewAssistantHandler(svc Assistant, opts HandlerOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(logger))
	r.Use(CORS)
	r.Use(Recoverer(logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not found")
	})

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if opts.Token != "" {
			r.Use(BearerAuth(opts.Token))
		}
		h := handleAssistant(svc, logger)
		r.HandleFunc("/assistant", h)
		r.HandleFunc("/functions/v1/ia-assistant", h)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAssistant(svc Assistant, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req assistant.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		// A client that disconnects does not cancel a request already in flight.
		resp, err := svc.Handle(context.WithoutCancel(r.Context()), req)
		if err != nil {
			status := statusFor(err)
			kind := errorKind(err)
			logger.Error("assistant request failed",
				"request_id", middleware.GetReqID(r.Context()),
				"status", status,
				"kind", kind,
				"error", err,
			)
			httpError(w, status, "%s", publicMessage(kind, err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// statusFor maps a service error to an HTTP status. Only malformed input is a
// client error; configuration, upstream and unexpected failures are all 500.
func statusFor(err error) int {
	if errors.Is(err, assistant.ErrInvalidRequest) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, assistant.ErrInvalidRequest):
		return "invalid_request"
	case assistant.IsConfigurationError(err):
		return "configuration"
	case assistant.IsUpstreamError(err):
		return "upstream"
	default:
		return "internal"
	}
}

// publicMessage is the error text returned to the caller. Unhandled failures
// get a generic message; their detail stays in the log.
func publicMessage(kind string, err error) string {
	if kind == "internal" {
		return internalErrorMessage
	}
	return err.Error()
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(assistant.ErrorResponse{Error: fmt.Sprintf(format, args...)})
}
