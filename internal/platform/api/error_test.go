package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestUnprocessable(t *testing.T) {
	rr := httptest.NewRecorder()
	Unprocessable(rr, "DEPTH_LIMIT_EXCEEDED", "replies may nest at most 2 levels", "rid-1", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	e := decode(t, rr)
	assert.Equal(t, "DEPTH_LIMIT_EXCEEDED", e.Code)
	assert.Equal(t, "rid-1", e.RequestID)
	assert.Nil(t, e.Details)
}

func TestValidationFailed_CarriesField(t *testing.T) {
	rr := httptest.NewRecorder()
	ValidationFailed(rr, "text", "too long", "rid-2")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	e := decode(t, rr)
	assert.Equal(t, "VALIDATION_FAILED", e.Code)
	assert.Equal(t, "invalid text: too long", e.Message)
	assert.Equal(t, map[string]any{"text": "too long"}, e.Details)
}

func TestInternal_HidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	Internal(rr, "rid-3")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	e := decode(t, rr)
	assert.Equal(t, "INTERNAL", e.Code)
	assert.Equal(t, "Internal server error", e.Message)
}

func TestWriteJSON_NilBody(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusAccepted, nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Empty(t, rr.Body.String())
}
