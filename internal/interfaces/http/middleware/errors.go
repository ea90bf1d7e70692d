// Package middleware holds the gin middleware of the clauselens API: request
// ids, access logging, metrics, panic recovery, CORS and per-client rate
// limiting.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/clauselens/pkg/errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// AbortWithError writes err as an ErrorResponse with the status mapped from
// its code and aborts the chain. Server-side failures only expose the code's
// default message.
func AbortWithError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	resp := ErrorResponse{Code: string(code), RequestID: RequestIDFrom(c)}
	var ae *errors.AppError
	switch {
	case status >= 500:
		resp.Message = errors.DefaultMessageForCode(code)
	case errors.As(err, &ae):
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	default:
		resp.Message = err.Error()
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}
