package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const appendRetries = 3

// NewSessionID returns "session-<unix millis>-<9 char suffix>".
func NewSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return "session-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix
}

// CreateSession inserts a new session. It returns ErrDuplicate if the id is taken.
func (d *DB) CreateSession(ctx context.Context, sessionID, ipAddress string) (ChatSession, error) {
	now := d.timestamp()
	s := ChatSession{SessionID: sessionID, IPAddress: ipAddress, CreatedAt: now, UpdatedAt: now}

	_, err := d.ExecContextRebound(ctx, `
	INSERT INTO chat_sessions (session_id, ip_address, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	`, s.SessionID, s.IPAddress, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ChatSession{}, ErrDuplicate
		}
		return ChatSession{}, fmt.Errorf("failed to create chat session: %w", err)
	}
	return s, nil
}

// GetSession returns the session or ErrSessionNotFound.
func (d *DB) GetSession(ctx context.Context, sessionID string) (ChatSession, error) {
	var s ChatSession
	err := d.QueryRowContextRebound(ctx, `
	SELECT session_id, ip_address, created_at, updated_at
	FROM chat_sessions
	WHERE session_id = ?
	`, sessionID).Scan(&s.SessionID, &s.IPAddress, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ChatSession{}, ErrSessionNotFound
		}
		return ChatSession{}, fmt.Errorf("failed to get chat session: %w", err)
	}
	return s, nil
}

// AddMessage appends a message to a session and bumps the session's
// updated_at in the same transaction.
func (d *DB) AddMessage(ctx context.Context, sessionID string, role Role, content string) (ChatMessage, error) {
	if !role.Valid() {
		return ChatMessage{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	var (
		msg ChatMessage
		err error
	)
	for attempt := 0; attempt < appendRetries; attempt++ {
		msg, err = d.appendMessage(ctx, sessionID, role, content)
		if !errors.Is(err, ErrDuplicate) {
			break
		}
	}
	return msg, err
}

func (d *DB) appendMessage(ctx context.Context, sessionID string, role Role, content string) (ChatMessage, error) {
	msg := ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: d.timestamp(),
	}

	err := d.Transaction(ctx, func(tx *sql.Tx) error {
		// Updating the session row first locks it, so concurrent appends to
		// the same session queue behind each other before reading MAX(seq).
		res, err := tx.ExecContext(ctx, d.RebindQuery(`
		UPDATE chat_sessions SET updated_at = ? WHERE session_id = ?
		`), msg.CreatedAt, sessionID)
		if err != nil {
			return fmt.Errorf("failed to touch chat session: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check chat session update: %w", err)
		} else if n == 0 {
			return ErrSessionNotFound
		}

		if err := tx.QueryRowContext(ctx, d.RebindQuery(`
		SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_messages WHERE session_id = ?
		`), sessionID).Scan(&msg.Seq); err != nil {
			return fmt.Errorf("failed to read message sequence: %w", err)
		}

		if _, err := tx.ExecContext(ctx, d.RebindQuery(`
		INSERT INTO chat_messages (id, session_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		`), msg.ID, msg.SessionID, msg.Seq, string(msg.Role), msg.Content, msg.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to insert chat message: %w", err)
		}
		return nil
	})
	if err != nil {
		return ChatMessage{}, err
	}
	return msg, nil
}

// GetMessages returns the most recent limit messages of a session in
// insertion order. limit <= 0 returns the whole history. An unknown session
// yields an empty slice.
func (d *DB) GetMessages(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	query := `
	SELECT id, session_id, seq, role, content, created_at
	FROM chat_messages
	WHERE session_id = ?
	ORDER BY seq ASC
	`
	args := []any{sessionID}
	if limit > 0 {
		query = `
		SELECT id, session_id, seq, role, content, created_at FROM (
			SELECT id, session_id, seq, role, content, created_at
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY seq DESC
			LIMIT ?
		) recent
		ORDER BY seq ASC
		`
		args = append(args, limit)
	}

	rows, err := d.QueryContextRebound(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]ChatMessage, 0)
	for rows.Next() {
		var m ChatMessage
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		m.Role = Role(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat messages: %w", err)
	}
	return messages, nil
}

// ListSessions returns the most recently active sessions with their message counts.
func (d *DB) ListSessions(ctx context.Context, limit int) ([]ChatSession, error) {
	rows, err := d.QueryContextRebound(ctx, `
	SELECT s.session_id, s.ip_address, s.created_at, s.updated_at, COUNT(m.id)
	FROM chat_sessions s
	LEFT JOIN chat_messages m ON m.session_id = s.session_id
	GROUP BY s.session_id, s.ip_address, s.created_at, s.updated_at
	ORDER BY s.updated_at DESC
	LIMIT ?
	`, ListOptions{Limit: limit}.limit())
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]ChatSession, 0)
	for rows.Next() {
		var s ChatSession
		if err := rows.Scan(&s.SessionID, &s.IPAddress, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan chat session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat sessions: %w", err)
	}
	return sessions, nil
}
