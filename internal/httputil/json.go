// Package httputil holds the small response helpers shared by the
// Gateway and System Server HTTP handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the wire shape every core error response shares:
// {detail, code}.
type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// WriteError maps err to its HTTP status and {detail, code} body, using
// arena.AsCoreError so a plain error still produces a well-formed
// response (InternalError, 500).
func WriteError(w http.ResponseWriter, err error) {
	ce := arena.AsCoreError(err)
	WriteJSON(w, ce.Status, errorBody{Detail: ce.Message, Code: ce.Code})
}

// WriteErrorStatus writes a bare status/detail pair when no CoreError
// variant fits (e.g. a framework-level 405).
func WriteErrorStatus(w http.ResponseWriter, status int, detail, code string) {
	WriteJSON(w, status, errorBody{Detail: detail, Code: code})
}
