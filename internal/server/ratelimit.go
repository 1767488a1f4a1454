package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sofatutor/portfolio-api/internal/logging"
	"github.com/sofatutor/portfolio-api/internal/middleware"
	"github.com/sofatutor/portfolio-api/internal/ratelimit"
)

// rateLimit counts the request against policy for the resolved client and
// rejects it with 429 once the window budget is spent. Rate-limit headers
// are set on every response.
func (s *Server) rateLimit(policy ratelimit.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := middleware.GetClientIP(c)
		res := policy.Allow(c.Request.Context(), s.limiter, clientID)
		setRateLimitHeaders(c, res)

		if res.Allowed {
			c.Next()
			return
		}

		retryAfter := res.RetryAfter(s.now())
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		if s.metrics != nil {
			s.metrics.RecordRateLimited(policy.Name)
		}
		logging.WithContext(c.Request.Context(), s.logger).Info("rate limit exceeded",
			zap.String("policy", policy.Name),
			zap.Int("retry_after", retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "Too many requests. Please try again later.",
			"retryAfter": retryAfter,
		})
	}
}

func setRateLimitHeaders(c *gin.Context, res ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
}
