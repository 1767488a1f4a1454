package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", "admin-key")
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "://nope"} {
		_, err := New(u, "")
		assert.Error(t, err, u)
	}
}

func TestChat(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"Hi there!","sessionId":"session-1-abc"}`))
	})

	reply, err := c.Chat(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, ChatReply{Response: "Hi there!", SessionID: "session-1-abc"}, reply)
	_, hasSession := got["sessionId"]
	assert.False(t, hasSession)

	_, err = c.Chat(context.Background(), "again", "session-1-abc")
	require.NoError(t, err)
	assert.Equal(t, "session-1-abc", got["sessionId"])
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		headers map[string]string
		check   func(t *testing.T, e *APIError)
	}{
		{
			name: "validation", status: 400,
			body: `{"error":"Validation failed","errors":["Message is required"]}`,
			check: func(t *testing.T, e *APIError) {
				assert.Equal(t, []string{"Message is required"}, e.Errors)
				assert.Contains(t, e.Error(), "Message is required")
			},
		},
		{
			name: "rate limited", status: 429,
			body:    `{"error":"Too many requests","retryAfter":42}`,
			headers: map[string]string{"Retry-After": "42"},
			check: func(t *testing.T, e *APIError) {
				assert.Equal(t, 42, e.RetryAfter)
				assert.Contains(t, e.Error(), "retry after 42s")
			},
		},
		{
			name: "plain text body", status: 502, body: "bad gateway",
			check: func(t *testing.T, e *APIError) {
				assert.Equal(t, "bad gateway", e.Message)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Chat(context.Background(), "hello", "")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			tt.check(t, apiErr)
		})
	}
}

func TestAdminCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer admin-key", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/contact":
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			assert.Equal(t, "true", r.URL.Query().Get("unread"))
			_, _ = w.Write([]byte(`{"submissions":[{"id":"s1","name":"Jane","read":false}],"count":1,"unread":1}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/api/contact/s1/read":
			_, _ = w.Write([]byte(`{"submission":{"id":"s1","read":true}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/chat/session-9":
			_, _ = w.Write([]byte(`{"session":{"sessionId":"session-9"},"messages":[{"role":"user","content":"hi"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	list, err := c.ListSubmissions(ctx, 5, true)
	require.NoError(t, err)
	require.Len(t, list.Submissions, 1)
	assert.Equal(t, "Jane", list.Submissions[0].Name)
	assert.Equal(t, 1, list.Unread)

	sub, err := c.MarkRead(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, sub.Read)

	tr, err := c.GetTranscript(ctx, "session-9")
	require.NoError(t, err)
	assert.Equal(t, "session-9", tr.Session.SessionID)
	require.Len(t, tr.Messages, 1)
	assert.Equal(t, "hi", tr.Messages[0].Content)
}

func TestAdminCalls_RequireKey(t *testing.T) {
	c, err := New("http://127.0.0.1:1", "")
	require.NoError(t, err)
	_, err = c.ListSubmissions(context.Background(), 0, false)
	assert.ErrorContains(t, err, "admin key is required")
}

func TestSubmitContact(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Jane", body["name"])
		_, _ = w.Write([]byte(`{"success":true,"submissionId":"abc","emailSent":false}`))
	})
	receipt, err := c.SubmitContact(context.Background(), "Jane", "jane@example.com", "Hello there, nice site!")
	require.NoError(t, err)
	assert.Equal(t, ContactReceipt{Success: true, SubmissionID: "abc", EmailSent: false}, receipt)
}
