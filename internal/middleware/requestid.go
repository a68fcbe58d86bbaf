package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
)

const (
	HeaderXRequestID = "X-Request-ID"
	ContextRequestID = "request_id"
	maxRequestIDLen  = 128
)

// RequestID adds a unique request ID to each request and to its
// context.Context, where the audit trail picks it up.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestID, rid)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), model.RequestIDKey, rid))
		c.Header(HeaderXRequestID, rid)
		c.Next()
	}
}
