package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "COMMON_001", ErrCodeInternal.String())
}

func TestHTTPStatusForCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInternal, 500},
		{ErrCodeBadRequest, 400},
		{ErrCodeNotFound, 404},
		{ErrCodeConflict, 409},
		{ErrCodeValidation, 422},
		{ErrCodeNoUsableInput, 422},
		{ErrCodeInvalidInputShape, 422},
		{ErrCodeModelUnavailable, 503},
		{ErrCodeInferenceFailed, 502},
		{ErrCodeJobNotFound, 404},
		{ErrCodeJobNotFinished, 409},
		{ErrorCode("UNKNOWN"), 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatusForCode(tt.code), string(tt.code))
	}
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "internal server error", DefaultMessageForCode(ErrCodeInternal))
	assert.Equal(t, "no usable input", DefaultMessageForCode(ErrCodeNoUsableInput))
	assert.Equal(t, "unknown error", DefaultMessageForCode(ErrorCode("UNKNOWN")))
}

func TestIsClientAndServerError(t *testing.T) {
	assert.True(t, IsClientError(ErrCodeInvalidInputShape))
	assert.False(t, IsClientError(ErrCodeInternal))
	assert.True(t, IsServerError(ErrCodeModelUnavailable))
	assert.False(t, IsServerError(ErrCodeBadRequest))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
	assert.Equal(t, "PROFILE", ModuleForCode(ErrCodeNoUsableInput))
	assert.Equal(t, "JOB", ModuleForCode(ErrCodeJobNotFound))
	assert.Equal(t, "UNKNOWN", ModuleForCode(CodeUnknown))
}

func TestErrorCodeMappings_Completeness(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]+_\d{3}$`)
	for code := range ErrorCodeHTTPStatus {
		assert.Regexp(t, re, string(code))
		_, ok := ErrorCodeMessage[code]
		assert.True(t, ok, "missing message for %s", code)
	}
	assert.Equal(t, len(ErrorCodeHTTPStatus), len(ErrorCodeMessage))
}
