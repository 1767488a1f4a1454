package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sofatutor/portfolio-api/internal/audit"
	"github.com/sofatutor/portfolio-api/internal/auth"
	"github.com/sofatutor/portfolio-api/internal/logging"
	"github.com/sofatutor/portfolio-api/internal/middleware"
)

// requireAdmin rejects requests without a valid admin bearer key. Rejections
// are audited with the presented key redacted.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := auth.BearerToken(c.GetHeader("Authorization"))
		err := s.keys.Verify(token)
		if err == nil {
			c.Next()
			return
		}

		log := logging.WithContext(c.Request.Context(), s.logger)
		if errors.Is(err, auth.ErrNotConfigured) {
			log.Warn("admin endpoint called but ADMIN_API_KEY is not set", zap.String("path", c.Request.URL.Path))
		}
		s.auditEvent(c, audit.NewEvent(audit.ActionAdminAuthFailure, audit.ActorAnonymous, audit.ResultFailure).
			WithPresentedKey(token).
			WithEndpoint(c.Request.Method, c.Request.URL.Path).
			WithError(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
}

// auditEvent stamps e with the request's correlation fields and writes it.
// Write failures are logged, never returned to the caller.
func (s *Server) auditEvent(c *gin.Context, e *audit.Event) {
	if id, ok := logging.RequestIDFromContext(c.Request.Context()); ok {
		e.WithRequestID(id)
	}
	e.WithClientIP(middleware.GetClientIP(c))
	if err := s.audit.Log(e); err != nil {
		s.logger.Error("failed to write audit event", zap.String("action", e.Action), zap.Error(err))
	}
}
