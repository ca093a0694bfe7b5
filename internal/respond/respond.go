// Package respond writes the JSON envelopes shared by every HTTP feature.
//
// Success bodies carry the payload under "data" and, for collections, a
// "meta" count. Errors carry a machine-readable code, a message and the
// request's correlation ID.
package respond

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"impar/api/internal/middleware"
)

// Envelope wraps a successful response.
type Envelope struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

type Meta struct {
	Count int `json:"count"`
}

// ErrorEnvelope wraps a failed response.
type ErrorEnvelope struct {
	Error         ErrorBody `json:"error"`
	CorrelationID string    `json:"correlationId"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeBadRequest = "BAD_REQUEST"
	CodeNotFound   = "NOT_FOUND"
	CodeStore      = "STORE_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
)

func Data(ctx context.Context, w http.ResponseWriter, status int, data interface{}) {
	write(ctx, w, status, Envelope{Data: data})
}

// List writes a collection together with its length.
func List(ctx context.Context, w http.ResponseWriter, items interface{}, count int) {
	write(ctx, w, http.StatusOK, Envelope{Data: items, Meta: &Meta{Count: count}})
}

func Error(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	write(ctx, w, status, ErrorEnvelope{
		Error:         ErrorBody{Code: code, Message: message},
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
}

func write(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
