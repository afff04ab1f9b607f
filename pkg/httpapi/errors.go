package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rsp2com/gateway/pkg/gwerrors"
)

// WriteError renders the uniform {error:{message,type,code}} body.
func WriteError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "invalid_request_error",
			"code":    code,
		},
	})
	w.Write(body)
}

// WriteGatewayError renders err as the uniform error body, preferring a
// *gwerrors.Error's own status/body when present and falling back to a
// generic 500 for anything unrecognized.
func WriteGatewayError(w http.ResponseWriter, err error) {
	ge, ok := gwerrors.As(err)
	if !ok {
		WriteError(w, http.StatusInternalServerError, err.Error(), "server_error")
		return
	}
	if ge.Kind == gwerrors.KindUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ge.HTTPStatus())
	w.Write(ge.JSONBody())
}

// WriteNotFound renders the uniform 404 body for an unrecognized route.
func WriteNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "no such route", "not_found")
}
