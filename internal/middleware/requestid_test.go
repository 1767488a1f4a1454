package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/sofatutor/portfolio-api/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		keep     bool
		expectID string
	}{
		{name: "absent generates uuid"},
		{name: "provided is kept", header: "req-abc-123", keep: true, expectID: "req-abc-123"},
		{name: "whitespace trimmed", header: "  req-1  ", keep: true, expectID: "req-1"},
		{name: "too long replaced", header: strings.Repeat("a", 200)},
		{name: "control chars replaced", header: "bad\tid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID string
			r := gin.New()
			r.Use(RequestID())
			r.GET("/", func(c *gin.Context) {
				ctxID, _ = logging.RequestIDFromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			assert.Equal(t, got, ctxID)
			if tt.keep {
				assert.Equal(t, tt.expectID, got)
			} else {
				_, err := uuid.Parse(got)
				assert.NoError(t, err)
			}
		})
	}
}
