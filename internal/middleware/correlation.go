// Package middleware contains gin middlewares shared by the control
// plane and any future HTTP surfaces.
package middleware

import (
	"context"

	"github.com/khanmassab/flixers-server/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderXCorrelationID is the header carrying a request's correlation id.
const HeaderXCorrelationID = "X-Correlation-ID"

// CorrelationID stamps every request with a correlation id (reusing one
// the caller supplied) and stashes it on the gin context and on the
// request's context under the logging package's context key so
// downstream log lines pick it up.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Header(HeaderXCorrelationID, correlationID)
		c.Set(string(logging.CorrelationIDKey), correlationID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logging.CorrelationIDKey, correlationID))
		c.Next()
	}
}
