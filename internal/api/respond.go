// Package api implements the coordinator's HTTP coordination protocol (spec §4.4/§6).
package api

import (
	"encoding/json"
	"net/http"

	"github.com/spacesaver/coordinator/internal/xerrors"
)

// writeJSON marshals v as the response body with status, mirroring the teacher's writeJSON
// helper in internal/api/errors.go.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps err's xerrors.Kind to a status code and writes a JSON error body.
func writeError(w http.ResponseWriter, err error) {
	status := xerrors.StatusCode(err)
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeNotFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: msg})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
