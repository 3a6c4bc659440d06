package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{Conflict("clash"), http.StatusConflict},
		{PayloadTooLarge("big"), http.StatusRequestEntityTooLarge},
		{TooManyRequests("slow down"), http.StatusTooManyRequests},
		{Internal("boom", errors.New("db")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("update event: %w", NotFound("event not found"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindForbidden))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindInternal))

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "event not found", appErr.Message)
}

func TestUnwrapCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Conflict("insert failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
