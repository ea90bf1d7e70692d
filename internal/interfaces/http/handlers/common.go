// Package handlers implements the clauselens HTTP endpoints.
package handlers

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/interfaces/http/middleware"
	"github.com/turtacn/clauselens/pkg/errors"
)

// respondError logs server-side failures and writes the error response.
func respondError(c *gin.Context, log logging.Logger, err error) {
	if errors.IsServerError(errors.GetCode(err)) {
		log.Error("request failed",
			logging.String("path", c.FullPath()),
			logging.String("request_id", middleware.RequestIDFrom(c)),
			logging.Err(err))
	}
	middleware.AbortWithError(c, err)
}

// bindJSON decodes the body into dst. An empty body is reported as
// NoUsableInput, an oversized one as a bad request.
func bindJSON(c *gin.Context, dst interface{}) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.Is(err, io.EOF):
		return errors.NoUsableInput("request body is empty")
	case stderrors.As(err, &tooLarge):
		return errors.InvalidParam("request body too large").WithDetailf("limit=%d", tooLarge.Limit)
	default:
		return errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body")
	}
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.InvalidParam(name + " must be an integer").WithDetail(v)
	}
	return n, nil
}

// BodyLimit caps request bodies at n bytes.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

var errFeatureDisabled = errors.New(errors.ErrCodeFeatureDisabled, "feature disabled")
