package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/sofatutor/portfolio-api/internal/database"
	"github.com/sofatutor/portfolio-api/internal/logging"
)

var bodyTemplate = template.Must(template.New("contact").Parse(`New contact form submission

Name:    {{.Name}}
Email:   {{.Email}}
IP:      {{if .IPAddress}}{{.IPAddress}}{{else}}unknown{{end}}
Time:    {{.CreatedAt.UTC.Format "2006-01-02 15:04:05 MST"}}
ID:      {{.ID}}

{{.Message}}
`))

// Outcome observes delivery attempts.
type Outcome interface {
	RecordEmail(sent bool)
}

// Notifier formats and sends owner notifications for contact submissions.
type Notifier struct {
	mailer  Mailer
	from    string
	to      []string
	timeout time.Duration
	logger  *zap.Logger
	outcome Outcome
}

// NewNotifier creates a Notifier. to may hold several comma-separated addresses.
func NewNotifier(mailer Mailer, from, to string, timeout time.Duration, logger *zap.Logger, outcome Outcome) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	var rcpts []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			rcpts = append(rcpts, addr)
		}
	}
	return &Notifier{mailer: mailer, from: from, to: rcpts, timeout: timeout, logger: logger, outcome: outcome}
}

// Notify sends the notification for sub and reports whether it was delivered.
// It never returns an error.
func (n *Notifier) Notify(ctx context.Context, sub database.ContactSubmission) bool {
	sent := n.send(ctx, sub)
	if n.outcome != nil {
		n.outcome.RecordEmail(sent)
	}
	return sent
}

func (n *Notifier) send(ctx context.Context, sub database.ContactSubmission) bool {
	log := logging.WithContext(ctx, n.logger).With(zap.String("submission_id", sub.ID))
	if _, ok := n.mailer.(DisabledMailer); ok {
		log.Debug("email notifications disabled")
		return false
	}
	if len(n.to) == 0 {
		log.Warn("no notification recipient configured")
		return false
	}

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, sub); err != nil {
		log.Error("failed to render notification", zap.Error(err))
		return false
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	err := n.mailer.Send(ctx, Message{
		From:    n.from,
		To:      n.to,
		ReplyTo: sub.Email,
		Subject: "Portfolio contact from " + sub.Name,
		Body:    body.String(),
	})
	switch {
	case err == nil:
		log.Info("contact notification sent")
		return true
	case errors.Is(err, ErrMailerDisabled):
		log.Debug("email notifications disabled")
	default:
		log.Warn("failed to send contact notification", zap.Error(err))
	}
	return false
}
