package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestRespondWithServiceError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", nil)
	unavailable := NewError(ErrServiceUnavailable, "Judge service unavailable").
		WithDebug(errors.New("status 502"))

	t.Run("hides internals on 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithServiceError(rec, req, errors.New("sql: connection reset"), true)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error", decodeError(t, rec))
	})

	t.Run("debug detail outside production", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithServiceError(rec, req, unavailable, true)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "Judge service unavailable: status 502", decodeError(t, rec))
	})

	t.Run("generic message in production", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithServiceError(rec, req, unavailable, false)
		assert.Equal(t, "Judge service unavailable", decodeError(t, rec))
	})

	t.Run("auth kinds", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithServiceError(rec, req, NewError(ErrUnauthorized, "Invalid or expired token"), false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid or expired token", decodeError(t, rec))

		rec = httptest.NewRecorder()
		RespondWithServiceError(rec, req, NewError(ErrForbidden, "Admin access required"), false)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Admin access required", decodeError(t, rec))
	})

	t.Run("internal kind keeps its message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := NewError(ErrInternalServer, "Could not render the sheet file").WithDebug(errors.New("toml: unsupported type"))
		RespondWithServiceError(rec, req, err, true)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Could not render the sheet file", decodeError(t, rec))
	})

	t.Run("plain sentinel", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithServiceError(rec, req, ErrNotFound, false)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, ErrNotFound.Error(), decodeError(t, rec))
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})
}
