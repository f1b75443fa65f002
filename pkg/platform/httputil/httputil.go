// Package httputil centralizes JSON response writing for handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "leadcapture/pkg/domain-errors"
)

// FieldError is implemented by errors that point at a single input field.
type FieldError interface {
	error
	FieldName() string
}

// WriteJSON writes payload as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError translates a domain error into the JSON error envelope.
// Internal errors never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	description := ""
	if de, ok := dErrors.As(err); ok {
		code = de.Code
		description = de.Error()
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal && description != "" {
		body["error_description"] = description
	}
	var fe FieldError
	if asFieldError(err, &fe) {
		body["field"] = fe.FieldName()
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

func asFieldError(err error, target *FieldError) bool {
	for err != nil {
		if fe, ok := err.(FieldError); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
