package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/errors"
)

// Recovery turns a handler panic into a logged COMMON_001 response.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					logging.Any("panic", r),
					logging.String("path", c.Request.URL.Path),
					logging.String("request_id", RequestIDFrom(c)),
					logging.String("stack", string(debug.Stack())))
				AbortWithError(c, errors.Internal("panic in handler"))
			}
		}()
		c.Next()
	}
}
