package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/gridsentry/gridchaos/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures every request carries a request_id, sourcing it from the
// inbound header when provided, and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := c.GetHeader(requestIDHeader); incoming != "" {
			ctx = logging.ContextWithRequestID(ctx, incoming)
		}
		ctx, id := logging.EnsureRequestID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// readOnlyGuard rejects the request when the server is in read-only mode.
// It is applied to every route that mutates controller state.
func (s *Server) readOnlyGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.readOnly {
			writeError(c, ErrReadOnly)
			c.Abort()
			return
		}
		c.Next()
	}
}
