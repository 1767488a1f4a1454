// Package audit writes an append-only JSONL trail of admin API activity.
package audit

import (
	"time"

	"github.com/sofatutor/portfolio-api/internal/obfuscate"
)

// Event is one audited admin operation.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Target    string         `json:"target,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	ClientIP  string         `json:"client_ip,omitempty"`
	Result    ResultType     `json:"result"`
	Details   map[string]any `json:"details,omitempty"`
}

type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultFailure ResultType = "failure"
)

const (
	ActionSubmissionList     = "submission.list"
	ActionSubmissionMarkRead = "submission.mark_read"
	ActionChatTranscript     = "chat.transcript"
	ActionChatSessions       = "chat.sessions"
	ActionAdminAuthFailure   = "admin.auth_failure"
)

const (
	ActorAdmin     = "admin"
	ActorAnonymous = "anonymous"
)

// NewEvent creates an event stamped with the current UTC time.
func NewEvent(action, actor string, result ResultType) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Actor:     actor,
		Result:    result,
	}
}

func (e *Event) WithTarget(target string) *Event {
	e.Target = target
	return e
}

func (e *Event) WithRequestID(id string) *Event {
	e.RequestID = id
	return e
}

func (e *Event) WithClientIP(ip string) *Event {
	e.ClientIP = ip
	return e
}

// WithDetail adds a key to Details. Values must not contain secrets.
func (e *Event) WithDetail(key string, value any) *Event {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithPresentedKey records a redacted form of a rejected credential.
func (e *Event) WithPresentedKey(key string) *Event {
	if key == "" {
		return e.WithDetail("presented_key", "")
	}
	return e.WithDetail("presented_key", obfuscate.Secret(key))
}

func (e *Event) WithError(err error) *Event {
	if err == nil {
		return e
	}
	return e.WithDetail("error", err.Error())
}

func (e *Event) WithEndpoint(method, path string) *Event {
	return e.WithDetail("http_method", method).WithDetail("endpoint", path)
}
