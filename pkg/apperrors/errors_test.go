package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		status   int
	}{
		{"app error", ErrLimitReached, "LIMIT_REACHED", http.StatusForbidden},
		{"wrapped app error", fmt.Errorf("create: %w", ErrInvalidType), "INVALID_TYPE", http.StatusBadRequest},
		{"plain error", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := As(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.status, got.StatusCode)
		})
	}
}

func TestWithMessageKeepsIdentity(t *testing.T) {
	err := ErrInvalidEngine.WithMessage("Invalid engine. Valid options: a, b")

	assert.True(t, errors.Is(err, ErrInvalidEngine))
	assert.False(t, errors.Is(err, ErrInvalidType))
	assert.Equal(t, "Invalid engine. Valid options: a, b", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
}

func TestNotFound(t *testing.T) {
	err := NotFound("Generation")
	assert.Equal(t, "Generation not found", err.Message)
	assert.True(t, errors.Is(err, ErrNotFound))
}
