// Package client is an HTTP client for the portfolio API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sofatutor/portfolio-api/internal/database"
)

// Client talks to a running portfolio API.
type Client struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// New creates a client for baseURL. adminKey is only needed for admin calls.
func New(baseURL, adminKey string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", baseURL)
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminKey:   adminKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string   `json:"error"`
	Errors     []string `json:"errors"`
	RetryAfter int      `json:"retryAfter"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	if len(e.Errors) > 0 {
		msg += " (" + strings.Join(e.Errors, "; ") + ")"
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %ds", e.RetryAfter)
	}
	return msg
}

// ChatReply is the response of POST /api/chat.
type ChatReply struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// Chat sends one message. An empty sessionID starts a new conversation.
func (c *Client) Chat(ctx context.Context, message, sessionID string) (ChatReply, error) {
	body := map[string]string{"message": message}
	if sessionID != "" {
		body["sessionId"] = sessionID
	}
	var out ChatReply
	err := c.do(ctx, http.MethodPost, "/api/chat", body, false, &out)
	return out, err
}

// ContactReceipt is the response of POST /api/contact.
type ContactReceipt struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submissionId"`
	EmailSent    bool   `json:"emailSent"`
}

// SubmitContact posts the contact form.
func (c *Client) SubmitContact(ctx context.Context, name, email, message string) (ContactReceipt, error) {
	var out ContactReceipt
	err := c.do(ctx, http.MethodPost, "/api/contact", map[string]string{
		"name": name, "email": email, "message": message,
	}, false, &out)
	return out, err
}

// SubmissionList is the response of GET /api/contact.
type SubmissionList struct {
	Submissions []database.ContactSubmission `json:"submissions"`
	Count       int                          `json:"count"`
	Unread      int                          `json:"unread"`
}

// ListSubmissions returns recent submissions. limit 0 uses the server default.
func (c *Client) ListSubmissions(ctx context.Context, limit int, unreadOnly bool) (SubmissionList, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if unreadOnly {
		q.Set("unread", "true")
	}
	path := "/api/contact"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out SubmissionList
	err := c.do(ctx, http.MethodGet, path, nil, true, &out)
	return out, err
}

// MarkRead flags a submission as read.
func (c *Client) MarkRead(ctx context.Context, id string) (database.ContactSubmission, error) {
	var out struct {
		Submission database.ContactSubmission `json:"submission"`
	}
	err := c.do(ctx, http.MethodPatch, "/api/contact/"+url.PathEscape(id)+"/read", nil, true, &out)
	return out.Submission, err
}

// Transcript is the response of GET /api/chat/:sessionId.
type Transcript struct {
	Session  database.ChatSession   `json:"session"`
	Messages []database.ChatMessage `json:"messages"`
}

// GetTranscript fetches a chat session with its messages.
func (c *Client) GetTranscript(ctx context.Context, sessionID string) (Transcript, error) {
	var out Transcript
	err := c.do(ctx, http.MethodGet, "/api/chat/"+url.PathEscape(sessionID), nil, true, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, admin bool, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if admin {
		if c.AdminKey == "" {
			return fmt.Errorf("admin key is required for %s %s", method, path)
		}
		req.Header.Set("Authorization", "Bearer "+c.AdminKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		if apiErr.RetryAfter == 0 {
			apiErr.RetryAfter, _ = strconv.Atoi(resp.Header.Get("Retry-After"))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
