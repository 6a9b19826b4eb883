package web

// errors.go maps failures to HTTP responses.
//
// Every error is logged server-side with the request id and returned to the
// client as JSON built from restore.NewUserError: a user-facing message, an
// action and a code. Client errors (4xx) also carry the technical detail so
// callers can fix their request.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/assetkeeper/internal/deploy"
	"github.com/JonMunkholm/assetkeeper/internal/logging"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

// statusFor picks the HTTP status for an error returned by the coordinator.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, deploy.ErrInvalidRequest), errors.Is(err, deploy.ErrInvalidManifest):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrObjectNotFound), errors.Is(err, restore.ErrDeploymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, deploy.ErrTooManyDeployments):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it as an ErrorResponse.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := restore.NewUserError(err)

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", ue.Code,
	)

	resp := ErrorResponse{
		Error:   ue.Error(),
		Message: ue.Message,
		Action:  ue.Action,
		Code:    ue.Code,
	}
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		resp.Detail = ue.Detail()
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "30")
		resp.Error = err.Error()
	}
	if status == http.StatusInternalServerError {
		resp.Detail = "request " + middleware.GetReqID(r.Context())
	}
	writeJSON(w, status, resp)
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
