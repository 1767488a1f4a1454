package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sofatutor/portfolio-api/internal/assistant"
	"github.com/sofatutor/portfolio-api/internal/audit"
	"github.com/sofatutor/portfolio-api/internal/database"
	"github.com/sofatutor/portfolio-api/internal/middleware"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	out, err := s.chat.HandleMessage(c.Request.Context(), assistant.ChatInput{
		Message:   req.Message,
		SessionID: req.SessionID,
		ClientIP:  middleware.GetClientIP(c),
	})
	if err != nil {
		if respondValidation(c, err) {
			return
		}
		s.respondInternal(c, "Failed to process chat message", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

const defaultTranscriptLimit = 200

// handleChatTranscript returns a session and its most recent messages.
func (s *Server) handleChatTranscript(c *gin.Context) {
	id := c.Param("sessionId")
	session, msgs, err := s.chat.Transcript(c.Request.Context(), id, queryInt(c, "limit", defaultTranscriptLimit))
	if err != nil {
		s.auditEvent(c, audit.NewEvent(audit.ActionChatTranscript, audit.ActorAdmin, audit.ResultFailure).
			WithTarget(id).WithError(err))
		if errors.Is(err, database.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		s.respondInternal(c, "Failed to load chat session", err)
		return
	}
	s.auditEvent(c, audit.NewEvent(audit.ActionChatTranscript, audit.ActorAdmin, audit.ResultSuccess).
		WithTarget(id).WithDetail("messages", len(msgs)))
	c.JSON(http.StatusOK, gin.H{"session": session, "messages": msgs})
}

// handleChatSessions lists the most recently active sessions.
func (s *Server) handleChatSessions(c *gin.Context) {
	sessions, err := s.store.ListSessions(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		s.respondInternal(c, "Failed to list chat sessions", err)
		return
	}
	s.auditEvent(c, audit.NewEvent(audit.ActionChatSessions, audit.ActorAdmin, audit.ResultSuccess).
		WithDetail("count", len(sessions)))
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}
