package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageError_Error(t *testing.T) {
	err := NewRenderError("BAD", "render failed", errors.New("boom")).WithComponent("frontend")
	assert.Equal(t, "[BAD] component:frontend render failed: boom", err.Error())
}

func TestPageError_IsMatchesTypeAndCode(t *testing.T) {
	wrapped := fmt.Errorf("handle: %w", ErrMalformedPageSetup.WithContext("type", 0))

	assert.True(t, errors.Is(wrapped, ErrMalformedPageSetup))
	assert.False(t, errors.Is(wrapped, ErrPageNotConfigured))
	assert.Nil(t, ErrMalformedPageSetup.Context, "sentinel must not be mutated")
}

func TestPageError_Unwrap(t *testing.T) {
	cause := errors.New("disk")
	err := NewIOError("READ", "read failed", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
		security    bool
		typ         ErrorType
	}{
		{"validation", NewValidationError("X", "x"), true, false, ErrorTypeValidation},
		{"security", NewSecurityError("X", "x"), false, true, ErrorTypeSecurity},
		{"cache", NewCacheError("X", "x", nil), true, false, ErrorTypeCache},
		{"plain", errors.New("x"), false, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
			assert.Equal(t, tt.security, IsSecurityError(tt.err))
			assert.Equal(t, tt.typ, TypeOf(tt.err))
		})
	}
}
