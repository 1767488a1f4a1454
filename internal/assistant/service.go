package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sofatutor/portfolio-api/internal/database"
	"github.com/sofatutor/portfolio-api/internal/logging"
	"github.com/sofatutor/portfolio-api/internal/obfuscate"
	"github.com/sofatutor/portfolio-api/internal/validation"
)

// Store is the conversation persistence the service needs.
type Store interface {
	CreateSession(ctx context.Context, sessionID, ipAddress string) (database.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (database.ChatSession, error)
	AddMessage(ctx context.Context, sessionID string, role database.Role, content string) (database.ChatMessage, error)
	GetMessages(ctx context.Context, sessionID string, limit int) ([]database.ChatMessage, error)
}

// ChatInput is an inbound chat turn.
type ChatInput struct {
	Message   string
	SessionID string
	ClientIP  string
}

// ChatOutput is the reply returned to the visitor.
type ChatOutput struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
	Source    string `json:"-"`
}

// Service runs one chat turn: validate, resolve the session, store the
// visitor message, produce a reply and store it.
type Service struct {
	store        Store
	chain        *Chain
	logger       *zap.Logger
	historyLimit int
	now          func() time.Time
}

// NewService creates a chat service. historyLimit bounds how many earlier
// messages are handed to responders.
func NewService(store Store, chain *Chain, historyLimit int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, chain: chain, logger: logger, historyLimit: historyLimit, now: time.Now}
}

// HandleMessage processes a visitor message. Invalid input returns a
// *validation.Error before anything is written. Storage failures are
// returned; responder failures never are.
func (s *Service) HandleMessage(ctx context.Context, in ChatInput) (ChatOutput, error) {
	if err := validation.ValidateChatMessage(in.Message).Err(); err != nil {
		return ChatOutput{}, err
	}
	message := validation.Sanitize(in.Message)
	if err := validation.ValidateChatMessage(message).Err(); err != nil {
		return ChatOutput{}, err
	}

	// Writes complete even if the client goes away.
	ctx = context.WithoutCancel(ctx)
	log := logging.WithContext(ctx, s.logger)

	session, err := s.resolveSession(ctx, in.SessionID, in.ClientIP)
	if err != nil {
		return ChatOutput{}, err
	}

	var history []database.ChatMessage
	if s.historyLimit > 0 {
		history, err = s.store.GetMessages(ctx, session.SessionID, s.historyLimit)
		if err != nil {
			return ChatOutput{}, fmt.Errorf("load chat history: %w", err)
		}
	}

	if _, err := s.store.AddMessage(ctx, session.SessionID, database.RoleUser, message); err != nil {
		return ChatOutput{}, fmt.Errorf("store user message: %w", err)
	}

	reply, err := s.chain.Respond(ctx, Request{SessionID: session.SessionID, Message: message, History: history})
	if err != nil {
		return ChatOutput{}, fmt.Errorf("generate reply: %w", err)
	}

	if _, err := s.store.AddMessage(ctx, session.SessionID, database.RoleAssistant, reply.Text); err != nil {
		return ChatOutput{}, fmt.Errorf("store assistant reply: %w", err)
	}

	log.Debug("chat turn handled",
		zap.String("session_id", session.SessionID),
		zap.String("source", reply.Source),
		zap.String("message", obfuscate.Text(message, 40)))

	return ChatOutput{Response: reply.Text, SessionID: session.SessionID, Source: reply.Source}, nil
}

// resolveSession returns the client's session, creating it when unknown.
// Ids that fail ValidSessionID are replaced by a generated one.
func (s *Service) resolveSession(ctx context.Context, requested, clientIP string) (database.ChatSession, error) {
	if requested != "" && validation.ValidSessionID(requested) {
		session, err := s.store.GetSession(ctx, requested)
		switch {
		case err == nil:
			return session, nil
		case !errors.Is(err, database.ErrSessionNotFound):
			return database.ChatSession{}, fmt.Errorf("load chat session: %w", err)
		}
		return s.createSession(ctx, requested, clientIP)
	}
	return s.createSession(ctx, database.NewSessionID(s.now()), clientIP)
}

func (s *Service) createSession(ctx context.Context, id, clientIP string) (database.ChatSession, error) {
	session, err := s.store.CreateSession(ctx, id, clientIP)
	if errors.Is(err, database.ErrDuplicate) {
		// Another request created it first.
		session, err = s.store.GetSession(ctx, id)
	}
	if err != nil {
		return database.ChatSession{}, fmt.Errorf("create chat session: %w", err)
	}
	return session, nil
}

// Transcript returns up to limit most recent messages of an existing session.
func (s *Service) Transcript(ctx context.Context, sessionID string, limit int) (database.ChatSession, []database.ChatMessage, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return database.ChatSession{}, nil, err
	}
	msgs, err := s.store.GetMessages(ctx, sessionID, limit)
	if err != nil {
		return database.ChatSession{}, nil, err
	}
	return session, msgs, nil
}
