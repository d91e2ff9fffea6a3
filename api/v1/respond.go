// Package v1 exposes the OpenGoat facade over HTTP.
package v1

import (
	"encoding/json"
	"net/http"

	"opengoat/internal/errs"
)

// StatusClientClosedRequest is nginx's non-standard code for a request
// the client abandoned.
const StatusClientClosedRequest = 499

// errorBody is the wire shape of every failed response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// respondError maps the error kind onto an HTTP status.
func respondError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case errs.KindValidation:
		status = http.StatusBadRequest
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindAuthorityDenied:
		status = http.StatusForbidden
	case errs.KindRuntimeSync:
		status = http.StatusBadGateway
	case errs.KindTransient:
		status = http.StatusServiceUnavailable
	case errs.KindCancelled:
		status = StatusClientClosedRequest
	}
	respond(w, status, errorBody{Error: err.Error(), Code: kind.String()})
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Validation("malformed request body: %v", err)
	}
	return nil
}

// actorOf resolves who is acting: the X-OpenGoat-Actor header, or the
// human operator by default.
func actorOf(r *http.Request) string {
	if actor := r.Header.Get("X-OpenGoat-Actor"); actor != "" {
		return actor
	}
	return "user"
}
