// Package httputil writes JSON responses and coded error bodies.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "folio/pkg/domain-errors"
)

// ReasonFunc names the business reason behind an error, "" when none.
type ReasonFunc func(err error) string

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status and a JSON body. Internal errors never
// expose their description.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorWithReason(w, err, nil)
}

func WriteErrorWithReason(w http.ResponseWriter, err error, reason ReasonFunc) {
	code := dErrors.CodeInternal
	var de *dErrors.Error
	if errors.As(err, &de) {
		code = de.Code
	}
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.Description = err.Error()
		if reason != nil {
			body.Reason = reason(err)
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	return nil
}
