package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsp2com/gateway/pkg/gwerrors"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteError_RendersUniformShape(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "bad body", "bad_request")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeErrorBody(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "bad body", errBody["message"])
	assert.Equal(t, "invalid_request_error", errBody["type"])
	assert.Equal(t, "bad_request", errBody["code"])
}

func TestWriteGatewayError_UsesGatewayErrorStatusAndCode(t *testing.T) {
	w := httptest.NewRecorder()
	WriteGatewayError(w, gwerrors.BadGateway("no upstream responded"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeErrorBody(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "bad_gateway", errBody["code"])
}

func TestWriteGatewayError_SetsWWWAuthenticateForUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()
	WriteGatewayError(w, gwerrors.Unauthorized("no token"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestWriteGatewayError_FallsBackTo500ForUnrecognizedError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteGatewayError(w, assertionError("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeErrorBody(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "server_error", errBody["code"])
}

func TestWriteNotFound_Renders404WithNotFoundCode(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeErrorBody(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "not_found", errBody["code"])
}

type assertionError string

func (e assertionError) Error() string { return string(e) }
