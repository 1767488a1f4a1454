package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sofatutor/portfolio-api/internal/audit"
	"github.com/sofatutor/portfolio-api/internal/database"
	"github.com/sofatutor/portfolio-api/internal/logging"
	"github.com/sofatutor/portfolio-api/internal/middleware"
	"github.com/sofatutor/portfolio-api/internal/notify"
	"github.com/sofatutor/portfolio-api/internal/validation"
)

type contactResponse struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submissionId"`
	EmailSent    bool   `json:"emailSent"`
}

func (s *Server) handleContactSubmit(c *gin.Context) {
	var form validation.ContactForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respondBadBody(c, err)
		return
	}

	res, err := s.contact.Submit(c.Request.Context(), notify.ContactInput{
		Form:     form,
		ClientIP: middleware.GetClientIP(c),
	})
	if err != nil {
		if respondValidation(c, err) {
			return
		}
		s.respondInternal(c, "Failed to submit contact form", err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordSubmission()
	}
	c.JSON(http.StatusOK, contactResponse{Success: true, SubmissionID: res.SubmissionID, EmailSent: res.EmailSent})
}

type submissionListResponse struct {
	Submissions []database.ContactSubmission `json:"submissions"`
	Count       int                          `json:"count"`
	Unread      int                          `json:"unread"`
}

// handleContactList returns recent submissions, newest first.
// Query: limit (default 50, max 500), unread=true.
func (s *Server) handleContactList(c *gin.Context) {
	opts := database.ListOptions{
		Limit:      queryInt(c, "limit", 0),
		UnreadOnly: c.Query("unread") == "true",
	}
	ctx := c.Request.Context()
	subs, err := s.store.ListSubmissions(ctx, opts)
	if err != nil {
		s.auditEvent(c, audit.NewEvent(audit.ActionSubmissionList, audit.ActorAdmin, audit.ResultFailure).WithError(err))
		s.respondInternal(c, "Failed to list submissions", err)
		return
	}
	unread, err := s.store.CountUnread(ctx)
	if err != nil {
		s.respondInternal(c, "Failed to list submissions", err)
		return
	}
	s.auditEvent(c, audit.NewEvent(audit.ActionSubmissionList, audit.ActorAdmin, audit.ResultSuccess).
		WithDetail("count", len(subs)).
		WithDetail("unread_only", opts.UnreadOnly))
	c.JSON(http.StatusOK, submissionListResponse{Submissions: subs, Count: len(subs), Unread: unread})
}

func (s *Server) handleContactMarkRead(c *gin.Context) {
	id := c.Param("id")
	sub, err := s.store.MarkSubmissionRead(c.Request.Context(), id)
	if err != nil {
		s.auditEvent(c, audit.NewEvent(audit.ActionSubmissionMarkRead, audit.ActorAdmin, audit.ResultFailure).
			WithTarget(id).WithError(err))
		if errors.Is(err, database.ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
			return
		}
		s.respondInternal(c, "Failed to update submission", err)
		return
	}
	s.auditEvent(c, audit.NewEvent(audit.ActionSubmissionMarkRead, audit.ActorAdmin, audit.ResultSuccess).WithTarget(id))
	c.JSON(http.StatusOK, gin.H{"submission": sub})
}

// respondBadBody answers malformed or oversized JSON.
func respondBadBody(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

// respondValidation writes a 400 for validation errors and reports whether it did.
func respondValidation(c *gin.Context, err error) bool {
	verr, ok := validation.AsError(err)
	if !ok {
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "errors": verr.Errors})
	return true
}

func (s *Server) respondInternal(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	logging.WithContext(c.Request.Context(), s.logger).Error(message, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
