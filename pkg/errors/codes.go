package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
)

// Aliases used by call sites that read better with short names.
const (
	CodeUnknown      = ErrorCode("")
	CodeOK           = ErrorCode("OK")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeRateLimit    = ErrCodeTooManyRequests
)

// Profiling pipeline error codes
const (
	// ErrCodeNoUsableInput is returned when the caller expected content but
	// nothing usable reached the pipeline.
	ErrCodeNoUsableInput ErrorCode = "PROFILE_001"
	// ErrCodeInvalidInputShape marks malformed model output: offsets outside
	// the text, reversed offsets, or arrays of mismatched length.
	ErrCodeInvalidInputShape ErrorCode = "PROFILE_002"
	ErrCodeModelUnavailable  ErrorCode = "PROFILE_003"
	ErrCodeInferenceFailed   ErrorCode = "PROFILE_004"
)

// Job error codes
const (
	ErrCodeJobNotFound    ErrorCode = "JOB_001"
	ErrCodeJobNotFinished ErrorCode = "JOB_002"
)

// Infrastructure error codes
const (
	ErrCodeStorageFailure ErrorCode = "STORAGE_001"
	ErrCodeCacheMiss      ErrorCode = "CACHE_001"
	ErrCodePublishFailed  ErrorCode = "MQ_001"
	ErrCodeSearchFailed   ErrorCode = "SEARCH_001"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusServiceUnavailable,

	ErrCodeNoUsableInput:     http.StatusUnprocessableEntity,
	ErrCodeInvalidInputShape: http.StatusUnprocessableEntity,
	ErrCodeModelUnavailable:  http.StatusServiceUnavailable,
	ErrCodeInferenceFailed:   http.StatusBadGateway,

	ErrCodeJobNotFound:    http.StatusNotFound,
	ErrCodeJobNotFinished: http.StatusConflict,

	ErrCodeStorageFailure: http.StatusInternalServerError,
	ErrCodeCacheMiss:      http.StatusNotFound,
	ErrCodePublishFailed:  http.StatusInternalServerError,
	ErrCodeSearchFailed:   http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",

	ErrCodeNoUsableInput:     "no usable input",
	ErrCodeInvalidInputShape: "invalid input shape",
	ErrCodeModelUnavailable:  "classification model not available",
	ErrCodeInferenceFailed:   "classification model inference failed",

	ErrCodeJobNotFound:    "profiling job not found",
	ErrCodeJobNotFinished: "profiling job not finished",

	ErrCodeStorageFailure: "object storage failure",
	ErrCodeCacheMiss:      "cache miss",
	ErrCodePublishFailed:  "message publish failed",
	ErrCodeSearchFailed:   "clause search failed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
