package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/sofatutor/portfolio-api/internal/client"
	"github.com/sofatutor/portfolio-api/internal/config"
	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:8080"

// Chat command flags
var (
	chatAPIURL    string
	chatSessionID string
	chatTimeout   time.Duration
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the site assistant from the terminal",
	Long: `Start an interactive conversation with the assistant through the public
chat endpoint. The session id is kept between turns.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatAPIURL, "api", "", "API base URL (default $PORTFOLIO_API_URL or "+defaultAPIURL+")")
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "Resume an existing session")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", config.EnvDurationOrDefault("PORTFOLIO_CHAT_TIMEOUT", 30*time.Second), "Per-message timeout")
}

func apiURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return config.EnvOrDefault("PORTFOLIO_API_URL", defaultAPIURL)
}

func runChat(cmd *cobra.Command, args []string) error {
	c, err := client.New(apiURL(chatAPIURL), "")
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mYou:\033[0m ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Chatting with", apiURL(chatAPIURL))
	fmt.Fprintln(out, "Type 'exit' or 'quit' to end the conversation.")
	return chatLoop(cmd.Context(), c, rl, out, chatSessionID, chatTimeout)
}

// lineReader is satisfied by *readline.Instance.
type lineReader interface {
	Readline() (string, error)
}

// chatter is satisfied by *client.Client.
type chatter interface {
	Chat(ctx context.Context, message, sessionID string) (client.ChatReply, error)
}

// chatLoop reads messages until exit and prints each reply. Request errors
// are printed and the loop continues; rate limiting reports the wait.
func chatLoop(ctx context.Context, c chatter, in lineReader, out io.Writer, sessionID string, timeout time.Duration) error {
	for {
		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		reply, err := c.Chat(reqCtx, line, sessionID)
		cancel()
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				fmt.Fprintf(out, "Error: %s (retry in %ds)\n", apiErr.Message, apiErr.RetryAfter)
			} else {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			continue
		}
		sessionID = reply.SessionID
		fmt.Fprintf(out, "\033[34mAssistant:\033[0m %s\n", reply.Response)
	}
}
