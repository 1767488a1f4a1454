package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sofatutor/portfolio-api/internal/config"
)

func TestNewMailer(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmailConfig
		want    any
		wantErr bool
	}{
		{"none", config.EmailConfig{Provider: "none"}, DisabledMailer{}, false},
		{"empty", config.EmailConfig{}, DisabledMailer{}, false},
		{"log", config.EmailConfig{Provider: "log"}, &LogMailer{}, false},
		{"smtp", config.EmailConfig{Provider: "smtp", SMTPHost: "mail.example.com", SMTPPort: 587}, &SMTPMailer{}, false},
		{"smtp without host", config.EmailConfig{Provider: "smtp"}, nil, true},
		{"http", config.EmailConfig{Provider: "http", APIURL: "https://mail.example.com", APIKey: "k"}, &HTTPMailer{}, false},
		{"http without key", config.EmailConfig{Provider: "http"}, nil, true},
		{"unknown", config.EmailConfig{Provider: "pigeon"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMailer(tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
		})
	}
}

func TestDisabledMailer(t *testing.T) {
	assert.ErrorIs(t, DisabledMailer{}.Send(context.Background(), Message{}), ErrMailerDisabled)
}

func TestLogMailer_RedactsReplyTo(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewLogMailer(zap.New(core))
	require.NoError(t, m.Send(context.Background(), Message{
		To:      []string{"owner@example.com"},
		ReplyTo: "jane@example.com",
		Subject: "hi",
		Body:    "body",
	}))
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.NotEqual(t, "jane@example.com", entries[0].ContextMap()["reply_to"])
}

func TestHTTPMailer(t *testing.T) {
	var got httpMailRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	m := NewHTTPMailer(srv.URL, "re_key", srv.Client())
	err := m.Send(context.Background(), Message{
		From: "site@example.com", To: []string{"owner@example.com"},
		ReplyTo: "jane@example.com", Subject: "New message", Body: "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer re_key", auth)
	assert.Equal(t, "site@example.com", got.From)
	assert.Equal(t, []string{"owner@example.com"}, got.To)
	assert.Equal(t, "jane@example.com", got.ReplyTo)
	assert.Equal(t, "Hello", got.Text)
}

func TestHTTPMailer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "domain not verified", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewHTTPMailer(srv.URL, "k", nil).Send(context.Background(), Message{To: []string{"a@b.c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "domain not verified")
}

func TestFormatMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := string(formatMessage(Message{
		From:    "site@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		ReplyTo: "jane@example.com",
		Subject: "Hello\r\nBcc: evil@example.com",
		Body:    "line one\nline two",
	}, now))

	assert.Contains(t, raw, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, raw, "Reply-To: jane@example.com\r\n")
	assert.Contains(t, raw, "Subject: Hello  Bcc: evil@example.com\r\n")
	assert.NotContains(t, raw, "\r\nBcc:")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nline one\r\nline two"))
}

// fakeSMTP accepts one session and records the commands and message data.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	cmds []string
	data string
	done chan struct{}
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeSMTP{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	go f.serve()
	return f
}

func (f *fakeSMTP) serve() {
	defer close(f.done)
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
	reply("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		f.mu.Lock()
		f.cmds = append(f.cmds, line)
		f.mu.Unlock()
		switch verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0]); verb {
		case "EHLO", "HELO":
			reply("250-fake")
			reply("250 8BITMIME")
		case "MAIL", "RCPT", "RSET", "NOOP":
			reply("250 OK")
		case "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			f.mu.Lock()
			f.data = b.String()
			f.mu.Unlock()
			reply("250 queued")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func TestSMTPMailer_Send(t *testing.T) {
	f := startFakeSMTP(t)
	addr := f.ln.Addr().(*net.TCPAddr)

	m := &SMTPMailer{Host: "127.0.0.1", Port: addr.Port}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.Send(ctx, Message{
		From: "site@example.com", To: []string{"owner@example.com"},
		ReplyTo: "jane@example.com", Subject: "New message", Body: "Hello owner",
	})
	require.NoError(t, err)
	<-f.done

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Contains(t, f.cmds, "MAIL FROM:<site@example.com> BODY=8BITMIME")
	assert.Contains(t, f.cmds, "RCPT TO:<owner@example.com>")
	assert.Contains(t, f.data, "Subject: New message\r\n")
	assert.Contains(t, f.data, "Hello owner")
}

func TestSMTPMailer_DialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	m := &SMTPMailer{Host: "127.0.0.1", Port: port}
	err = m.Send(context.Background(), Message{From: "a@b.c", To: []string{"d@e.f"}})
	assert.ErrorContains(t, err, "smtp dial")
}
