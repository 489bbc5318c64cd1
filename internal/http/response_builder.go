// Package http serves the FinTrack JSON API.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to HTTP status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// JSONResponseBuilder provides a fluent API for writing JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Error: message})
}

func NoContent() *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusNoContent)
}

// errorResponse maps a service error onto a response. Unexpected errors are
// logged and reported without detail.
func errorResponse(r *http.Request, err error) *JSONResponseBuilder {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return NewJSONResponse().
			Status(http.StatusBadRequest).
			Body(ErrorBody{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, core.ErrUnauthorized):
		return ErrorResponse(http.StatusUnauthorized, "unauthorized").
			Header("WWW-Authenticate", `Bearer realm="fintrack"`)
	case errors.Is(err, core.ErrNotFound):
		return ErrorResponse(http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrGoalClosed):
		return ErrorResponse(http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrConflict):
		return ErrorResponse(http.StatusConflict, "already exists")
	}

	fields := log.NewFields().WithErrorType(log.ErrorTypeInternal)
	var se *core.StoreError
	if errors.As(err, &se) {
		fields = fields.WithErrorType(log.ErrorTypeDatabase).WithOperation(se.Op)
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		append(fields.WithError(err).ToSlice(), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)...)
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(r, err).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
