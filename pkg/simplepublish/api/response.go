package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// Envelope is the body of every content and avatar response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, r, status, Envelope{Success: true, Data: data})
}

// writeError maps err to a status code and an envelope. Server side failures
// are logged and answered with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	switch status {
	case http.StatusBadGateway:
		message = "object store unavailable"
	case http.StatusInternalServerError:
		message = "internal server error"
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "kind", simplepublish.ErrorKind(err), "error", err)
	} else {
		h.logger.DebugContext(r.Context(), "request rejected",
			"method", r.Method, "path", r.URL.Path, "kind", simplepublish.ErrorKind(err), "error", err)
	}
	writeJSON(w, r, status, Envelope{Success: false, Error: message})
}

// statusFor returns the HTTP status for an error kind
func statusFor(err error) int {
	switch {
	case errors.Is(err, simplepublish.ErrValidation), errors.Is(err, simplepublish.ErrMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, simplepublish.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, simplepublish.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, simplepublish.ErrStoreUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
