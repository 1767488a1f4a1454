package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sofatutor/portfolio-api/internal/logging"
)

// Observer receives every finished request.
type Observer interface {
	ObserveRequest(route, method, code string, elapsed time.Duration)
}

// Logger logs each request after it completes. Server errors log at error,
// client errors at warn, everything else at info. observer may be nil.
func Logger(logger *zap.Logger, observer Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()

		if observer != nil {
			observer.ObserveRequest(c.FullPath(), c.Request.Method, strconv.Itoa(status), elapsed)
		}

		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status_code", status),
			zap.Duration("duration", elapsed),
			zap.Int("response_bytes", c.Writer.Size()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, zap.String("error", errs.String()))
		}
		if ce := logging.WithContext(c.Request.Context(), logger).Check(level, "request completed"); ce != nil {
			ce.Write(fields...)
		}
	}
}
