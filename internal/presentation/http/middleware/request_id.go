package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/clarident/clarident-go/internal/infrastructure/security"
)

// RequestIDKey is the gin context key for the request correlation id.
const RequestIDKey = "requestId"

// RequestIDHeader carries the correlation id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation id, honoring one supplied by
// the caller. Audit records carry this id so a switch can be traced back to
// its originating request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = security.GenerateULID()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the request's correlation id.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
