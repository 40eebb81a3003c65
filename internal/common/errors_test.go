package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound},
		{"bad request", NewError(ErrBadRequest, "Problem is not available"), http.StatusBadRequest},
		{"rate limited", NewError(ErrTooManyRequests, "Please wait 3s before submitting again"), http.StatusTooManyRequests},
		{"unavailable", NewError(ErrServiceUnavailable, "Judge service unavailable"), http.StatusServiceUnavailable},
		{"unauthorized", NewError(ErrUnauthorized, "Authorization token required"), http.StatusUnauthorized},
		{"forbidden", NewError(ErrForbidden, "Admin access required"), http.StatusForbidden},
		{"internal", NewError(ErrInternalServer, "Could not render the sheet file"), http.StatusInternalServerError},
		{"unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromError(tt.err))
		})
	}
}

func TestErrorKeepsDebugOutOfMessage(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:2358: connection refused")
	err := fmt.Errorf("judge: %w", NewError(ErrServiceUnavailable, "Judge service unavailable").WithDebug(cause))

	assert.Equal(t, "Judge service unavailable", UserMessage(err))
	assert.Equal(t, cause, DebugInfo(err))
	assert.NotContains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("x: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}
