package assistant

import (
	"context"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sofatutor/portfolio-api/internal/database"
)

// TokenCounter returns the number of model tokens in text.
type TokenCounter func(text string) int

// encoder is satisfied by *tiktoken.Tiktoken.
type encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

type loadedEncoder struct{ enc encoder }

// Tokenizer counts tokens with the model's tiktoken encoding once Load has
// fetched it. Until then Count approximates four characters per token, so
// counting never waits on the network.
type Tokenizer struct {
	model string
	load  func(model string) (encoder, error)

	mu      sync.Mutex
	pending chan struct{}
	err     error
	enc     atomic.Pointer[loadedEncoder]
}

// NewTokenizer returns a Tokenizer for model. Nothing is loaded yet.
func NewTokenizer(model string) *Tokenizer {
	return &Tokenizer{model: model, load: loadEncoding}
}

func loadEncoding(model string) (encoder, error) {
	e, err := tiktoken.EncodingForModel(model)
	if err != nil {
		e, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Load fetches the encoding and waits for it until ctx is done. A load that
// outlives ctx keeps running and Count picks it up when it lands. Concurrent
// calls share one fetch; a failed fetch may be retried by calling Load again.
func (t *Tokenizer) Load(ctx context.Context) error {
	if t.Ready() {
		return nil
	}
	t.mu.Lock()
	if t.pending == nil {
		done := make(chan struct{})
		t.pending = done
		go func() {
			e, err := t.load(t.model)
			t.mu.Lock()
			defer t.mu.Unlock()
			if err == nil {
				t.enc.Store(&loadedEncoder{enc: e})
			}
			t.err = err
			t.pending = nil
			close(done)
		}()
	}
	done := t.pending
	t.mu.Unlock()

	select {
	case <-done:
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.Ready() {
			return nil
		}
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the real encoding is in use.
func (t *Tokenizer) Ready() bool {
	return t.enc.Load() != nil
}

// Count is a TokenCounter.
func (t *Tokenizer) Count(text string) int {
	if l := t.enc.Load(); l != nil {
		return len(l.enc.Encode(text, nil, nil))
	}
	return approxTokens(text)
}

func approxTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// trimHistory keeps the newest messages whose combined size fits budget.
// budget <= 0 disables trimming.
func trimHistory(history []database.ChatMessage, budget int, count TokenCounter) []database.ChatMessage {
	if budget <= 0 || len(history) == 0 {
		return history
	}
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		used += count(history[i].Content)
		if used > budget {
			break
		}
		start = i
	}
	return history[start:]
}
