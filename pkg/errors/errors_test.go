package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
		kind   string
	}{
		{NotFound("appointment", nil), http.StatusNotFound, "not_found"},
		{Validation("bad %s", "input"), http.StatusBadRequest, "validation"},
		{Conflict("taken"), http.StatusConflict, "conflict"},
		{Forbidden("no"), http.StatusForbidden, "forbidden"},
		{Unauthorized(nil), http.StatusUnauthorized, "unauthorized"},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.HTTPStatus(), tt.err.Message)
		assert.Equal(t, tt.kind, tt.err.Kind(), tt.err.Message)
	}
}

func TestCodeOfUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("reserve: %w", Conflict("slot already taken"))
	assert.Equal(t, ErrConflict, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrConflict))
	assert.False(t, Is(nil, ErrConflict))
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("plain")))
	assert.Equal(t, "bad input: cause", NewBadRequest("bad input", fmt.Errorf("cause")).Error())
}
