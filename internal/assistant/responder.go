// Package assistant produces chat replies through an ordered chain of
// responders and records each turn in the conversation store.
package assistant

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sofatutor/portfolio-api/internal/database"
	"github.com/sofatutor/portfolio-api/internal/logging"
)

// ErrNoReply is returned when no responder in a chain produced a reply.
var ErrNoReply = errors.New("no responder produced a reply")

// Request is one visitor turn.
type Request struct {
	SessionID string
	Message   string
	// History holds earlier turns of the session, oldest first, excluding Message.
	History []database.ChatMessage
}

// Responder produces a reply or an error. A responder that has nothing to
// say returns ErrNoReply.
type Responder interface {
	Name() string
	Respond(ctx context.Context, req Request) (string, error)
}

// Reply is a chain result with the name of the responder that produced it.
type Reply struct {
	Text   string
	Source string
}

// Recorder observes every responder attempt.
type Recorder interface {
	RecordReply(source string, err error, elapsed time.Duration)
}

// Chain tries responders in order until one succeeds.
type Chain struct {
	responders []Responder
	logger     *zap.Logger
	recorder   Recorder
}

// NewChain builds a chain. Untyped nil responders are skipped.
func NewChain(logger *zap.Logger, recorder Recorder, responders ...Responder) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chain{logger: logger, recorder: recorder}
	for _, r := range responders {
		if r != nil {
			c.responders = append(c.responders, r)
		}
	}
	return c
}

// Names lists the responders in evaluation order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.responders))
	for _, r := range c.responders {
		names = append(names, r.Name())
	}
	return names
}

// Respond returns the first successful reply. Failures are logged and never
// returned to the caller unless every responder fails.
func (c *Chain) Respond(ctx context.Context, req Request) (Reply, error) {
	log := logging.WithContext(ctx, c.logger)
	for _, r := range c.responders {
		start := time.Now()
		text, err := r.Respond(ctx, req)
		if err == nil && text == "" {
			err = ErrNoReply
		}
		if c.recorder != nil {
			c.recorder.RecordReply(r.Name(), err, time.Since(start))
		}
		if err == nil {
			return Reply{Text: text, Source: r.Name()}, nil
		}
		if errors.Is(err, ErrNoReply) {
			log.Debug("responder declined", zap.String("responder", r.Name()))
		} else {
			log.Warn("responder failed, falling back",
				zap.String("responder", r.Name()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
		}
	}
	return Reply{}, ErrNoReply
}
