// Package httpx exposes the transfer service over a JSON HTTP API.
package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/bulkmove/internal/errors"
)

// Subset requests carry company ids inline; 8 MiB holds several hundred thousand of them.
const maxBodyBytes = 8 << 20

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
// It returns false after writing a 413 for an oversized body or a 400 for a malformed one.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if code := StatusFor(err); code == http.StatusRequestEntityTooLarge {
			WriteError(w, ErrorParams{Code: code, ErrCode: "request_too_large", Err: err})
			return false
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteError writes {error, message} using ErrorParams. Internal errors get a fixed message so
// store and driver details stay in the logs.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := ErrorBody{
		Error:   p.ErrCode,
		Message: p.Err.Error(),
		Field:   apperrors.GetField(p.Err),
	}
	if p.Code == http.StatusInternalServerError {
		body.Message = "internal server error"
		body.Field = ""
	}
	WriteJSON(w, p.Code, body)
}

// WriteAppError maps an application error code onto an HTTP status and writes it.
// Errors without a code are reported as internal.
func WriteAppError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	if code == "" {
		code = apperrors.ErrCodeInternal
	}
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: string(code), Err: err})
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case apperrors.IsValidation(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsConflict(err), apperrors.IsForeignKey(err):
		return http.StatusConflict
	case apperrors.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
