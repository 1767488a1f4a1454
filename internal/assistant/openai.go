package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sofatutor/portfolio-api/internal/database"
)

// maxErrorBody bounds how much of a failed response is kept for logging.
const maxErrorBody = 512

// ErrEmptyCompletion is returned when the provider answers without content.
var ErrEmptyCompletion = errors.New("empty completion")

// ChatMessage is a message in the chat completions format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat completions request body.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatResponse is the subset of the chat completions response we read.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// OpenAIConfig configures the remote tier.
type OpenAIConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	MaxTokens     int
	Temperature   float64
	HistoryTokens int
	SystemPrompt  string
}

// OpenAIResponder calls an OpenAI-compatible chat completions endpoint.
type OpenAIResponder struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	tokens     *Tokenizer
	count      TokenCounter
}

// NewOpenAIResponder returns nil when no API key is configured.
func NewOpenAIResponder(cfg OpenAIConfig, httpClient *http.Client) *OpenAIResponder {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	tokens := NewTokenizer(cfg.Model)
	return &OpenAIResponder{cfg: cfg, httpClient: httpClient, tokens: tokens, count: tokens.Count}
}

// WarmUp loads the tokenizer encoding used to trim history. Until it
// succeeds history is trimmed by an estimate.
func (o *OpenAIResponder) WarmUp(ctx context.Context) error {
	return o.tokens.Load(ctx)
}

// Name implements Responder.
func (o *OpenAIResponder) Name() string { return "openai" }

// Respond implements Responder. Timeouts, transport errors, non-2xx statuses,
// undecodable bodies and empty completions are all errors.
func (o *OpenAIResponder) Respond(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(ChatRequest{
		Model:       o.cfg.Model,
		Messages:    o.buildMessages(req),
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("request timed out after %s: %w", o.cfg.Timeout, err)
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var parsed ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrEmptyCompletion)
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func (o *OpenAIResponder) buildMessages(req Request) []ChatMessage {
	history := trimHistory(req.History, o.cfg.HistoryTokens, o.count)
	msgs := make([]ChatMessage, 0, len(history)+2)
	msgs = append(msgs, ChatMessage{Role: "system", Content: o.cfg.SystemPrompt})
	for _, m := range history {
		if m.Role != database.RoleUser && m.Role != database.RoleAssistant {
			continue
		}
		msgs = append(msgs, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return append(msgs, ChatMessage{Role: "user", Content: req.Message})
}
