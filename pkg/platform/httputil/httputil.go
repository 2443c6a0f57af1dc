// Package httputil provides the JSON response and decode helpers shared by
// all HTTP handlers.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	dErrors "veryphy/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; degree and verification payloads are
// small JSON documents.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError answers with the status mapped from err's domain code. Internal
// and substrate failures omit the message so infrastructure detail never
// leaks to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal && code != dErrors.CodeSubstrate {
		if de, ok := err.(*dErrors.Error); ok {
			resp.Description = de.Message
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// Decode reads and unmarshals the request body into T, rejecting unknown
// fields and oversized payloads.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, dErrors.Wrap(dErrors.CodeBadRequest, "malformed request body", err)
	}
	return v, nil
}
