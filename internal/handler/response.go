package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// Every success body carries "success": true. Every error body has the same
// shape so the stamp page can handle it without caring which endpoint failed:
//
//	{"success": false, "error": "not_found", "message": "user not found with id ..."}
//
// A repeat booth scan is the one error that also carries data: the 409 body
// includes the unchanged "stamps" so the page can re-render.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/model"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`             // Machine-readable error code (e.g., "not_found")
	Message string       `json:"message"`           // Human-readable description
	Field   string       `json:"field,omitempty"`   // Offending input, for validation errors
	Details string       `json:"details,omitempty"` // Underlying cause, only in dev mode
	Stamps  []model.Slot `json:"stamps,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE writing the body. Once
// Encode writes, the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to an HTTP status and response body.
//
// ERROR MAPPING:
// The service layer returns apperror values; this is the only place they
// become HTTP. Server-side failures (configuration, storage, anything
// unknown) get a generic message so credentials and backend details never
// reach the caller.
func errorStatus(err error) (int, ErrorResponse) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		}
	}

	resp := ErrorResponse{Error: appErr.Code, Message: appErr.Message, Field: appErr.Field}
	switch {
	case errors.Is(err, apperror.ErrValidation):
		if resp.Error == "" {
			resp.Error = apperror.CodeValidation
		}
		return http.StatusBadRequest, resp // 400
	case errors.Is(err, apperror.ErrNotFound):
		resp.Error = apperror.CodeNotFound
		return http.StatusNotFound, resp // 404
	case errors.Is(err, apperror.ErrConflict):
		if resp.Error == "" {
			resp.Error = apperror.CodeConflict
		}
		return http.StatusConflict, resp // 409
	case errors.Is(err, apperror.ErrUnauthorized):
		resp.Error = apperror.CodeUnauthorized
		return http.StatusUnauthorized, resp // 401
	case errors.Is(err, apperror.ErrConfiguration):
		return http.StatusInternalServerError, ErrorResponse{
			Error:   apperror.CodeConfiguration,
			Message: "The server's storage is not configured",
		}
	case errors.Is(err, apperror.ErrStorage):
		return http.StatusInternalServerError, ErrorResponse{
			Error:   apperror.CodeStorage,
			Message: "The server could not reach its storage",
		}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	}
}

// responder writes error responses. Every handler embeds one.
type responder struct {
	logger  *slog.Logger
	devMode bool
}

func (rs responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rs.writeErrorWithStamps(w, r, err, nil)
}

// writeErrorWithStamps logs server-side failures with their full cause and
// writes the mapped response. In dev mode the cause is echoed back.
func (rs responder) writeErrorWithStamps(w http.ResponseWriter, r *http.Request, err error, stamps []model.Slot) {
	status, resp := errorStatus(err)
	resp.Stamps = stamps

	if status >= http.StatusInternalServerError {
		rs.logger.Error("request failed",
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", apperror.Detail(err)),
		)
		if rs.devMode {
			resp.Details = apperror.Detail(err)
		}
	}

	writeJSON(w, status, resp)
}
