package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewNotFoundError("entry abc not found")
	assert.Equal(t, "NOT_FOUND: entry abc not found", err.Error())

	wrapped := NewExternalError("archive write failed", errors.New("connection refused"))
	assert.Equal(t, "EXTERNAL: archive write failed: connection refused", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "connection refused")
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"forbidden", NewForbiddenError("nurse may not escalate"), ErrorTypeForbidden},
		{"exhausted", NewResourceExhaustedError("cardiology at cap"), ErrorTypeResourceExhausted},
		{"wrapped", fmt.Errorf("assign: %w", NewConflictError("doctor busy")), ErrorTypeConflict},
		{"plain error", errors.New("boom"), ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestIsType(t *testing.T) {
	assert.True(t, IsType(NewValidationError("bad json"), ErrorTypeValidation))
	assert.False(t, IsType(nil, ErrorTypeValidation))
	assert.False(t, IsType(NewValidationError("bad json"), ErrorTypeNotFound))
}
