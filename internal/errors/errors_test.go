package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{
			name:     "validation error type",
			errType:  ErrTypeValidation,
			expected: "VALIDATION",
		},
		{
			name:     "parsing error type",
			errType:  ErrTypeParsing,
			expected: "PARSING",
		},
		{
			name:     "data error type",
			errType:  ErrTypeData,
			expected: "DATA",
		},
		{
			name:     "config error type",
			errType:  ErrTypeConfig,
			expected: "CONFIG",
		},
		{
			name:     "estimation error type",
			errType:  ErrTypeEstimation,
			expected: "ESTIMATION",
		},
		{
			name:     "storage error type",
			errType:  ErrTypeStorage,
			expected: "STORAGE",
		},
		{
			name:     "not found error type",
			errType:  ErrTypeNotFound,
			expected: "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "Share column contains a non-positive value",
				Cause:   nil,
			},
			wantMessage: "[VALIDATION] Share column contains a non-positive value",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeParsing,
				Message: "Failed to parse share cell",
				Cause:   fmt.Errorf("invalid syntax"),
			},
			wantMessage: "[PARSING] Failed to parse share cell: invalid syntax",
		},
		{
			name: "error with wrapped cause",
			appError: &AppError{
				Type:    ErrTypeStorage,
				Message: "Failed to write results",
				Cause:   errors.New("disk full"),
			},
			wantMessage: "[STORAGE] Failed to write results: disk full",
		},
		{
			name: "error with empty message",
			appError: &AppError{
				Type:    ErrTypeEstimation,
				Message: "",
				Cause:   nil,
			},
			wantMessage: "[ESTIMATION] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			assert.Equal(t, tt.wantMessage, got)
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	appErr := NewAppError(ErrTypeData, "dataset load failed", cause)

	assert.Equal(t, cause, appErr.Unwrap())
	assert.True(t, errors.Is(appErr, cause))

	bare := NewValidationError("bad input")
	assert.Nil(t, bare.Unwrap())
}

func TestAppError_ErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("load dataset: %w", NewParsingError("bad cell", errors.New("invalid syntax")))

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeParsing, appErr.Type)
	assert.Equal(t, "bad cell", appErr.Message)
}

func TestAppError_WithContext(t *testing.T) {
	appErr := NewParsingError("failed to parse share cell", nil).
		WithContext("row", 17).
		WithContext("column", "share")

	require.NotNil(t, appErr.Context)
	assert.Equal(t, 17, appErr.Context["row"])
	assert.Equal(t, "share", appErr.Context["column"])

	// WithContext must also work on a bare struct literal.
	bare := &AppError{Type: ErrTypeData, Message: "empty table"}
	bare.WithContext("path", "/tmp/products.csv")
	assert.Equal(t, "/tmp/products.csv", bare.Context["path"])
}

func TestHelperConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
	}{
		{"validation", NewValidationError("bad"), ErrTypeValidation},
		{"parsing", NewParsingError("bad", cause), ErrTypeParsing},
		{"data", NewDataError("bad", cause), ErrTypeData},
		{"config", NewConfigError("bad", cause), ErrTypeConfig},
		{"estimation", NewEstimationError("bad", cause), ErrTypeEstimation},
		{"storage", NewStorageError("bad", cause), ErrTypeStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("market column")
	assert.Equal(t, ErrTypeNotFound, err.Type)
	assert.Equal(t, "[NOT_FOUND] market column not found", err.Error())
}
