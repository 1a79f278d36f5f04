package teamchat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrCodeValidation, "message body is required")
	assert.Equal(t, "VALIDATION_ERROR: message body is required", err.Error())

	wrapped := NewErrorWithCause(ErrCodeStorage, "failed to insert message", fmt.Errorf("connection refused"))
	assert.Equal(t, "STORAGE_ERROR: failed to insert message: connection refused", wrapped.Error())
	assert.EqualError(t, wrapped.Unwrap(), "connection refused")
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
	}{
		{name: "no data", err: ErrNoData, predicate: IsNoData},
		{name: "not joined", err: ErrNotJoined, predicate: IsNotJoined},
		{name: "session closed", err: ErrSessionClosed, predicate: IsSessionClosed},
		{name: "validation", err: NewError(ErrCodeValidation, "bad payload"), predicate: IsValidation},
		{name: "storage", err: NewErrorWithCause(ErrCodeStorage, "down", fmt.Errorf("io")), predicate: IsStorage},
		{name: "wrapped storage", err: fmt.Errorf("publish: %w", NewError(ErrCodeStorage, "down")), predicate: IsStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.predicate(tt.err))
		})
	}

	assert.False(t, IsStorage(ErrNotJoined))
	assert.False(t, IsValidation(fmt.Errorf("plain")))
	assert.False(t, IsNotJoined(nil))
}

func TestValidateAppend(t *testing.T) {
	assert.NoError(t, ValidateAppend("T1", "u1", "Alice", "hello"))
	assert.True(t, IsValidation(ValidateAppend("", "u1", "Alice", "hello")))
	assert.True(t, IsValidation(ValidateAppend("T1", "", "Alice", "hello")))
	assert.True(t, IsValidation(ValidateAppend("T1", "u1", "", "hello")))
	assert.True(t, IsValidation(ValidateAppend("T1", "u1", "Alice", "")))
}
