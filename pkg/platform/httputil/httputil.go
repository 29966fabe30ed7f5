package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "g2p/pkg/domain-errors"
)

type errorResponse struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description,omitempty"`
	Errors           []dErrors.Field `json:"errors,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
// Internal errors never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = err.Error()
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
		resp.Errors = dErrors.FieldsOf(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}
