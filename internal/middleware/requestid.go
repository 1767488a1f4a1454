// Package middleware holds the gin middleware shared by the HTTP API.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sofatutor/portfolio-api/internal/logging"
)

const (
	HeaderRequestID = "X-Request-ID"

	maxRequestIDLength = 128
)

// RequestID propagates X-Request-ID into the request context and response,
// generating a UUID when the header is absent or unusable.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := normalizeRequestID(c.GetHeader(HeaderRequestID))
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func normalizeRequestID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxRequestIDLength {
		return uuid.New().String()
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return uuid.New().String()
		}
	}
	return id
}
