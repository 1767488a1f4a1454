package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sofatutor/portfolio-api/internal/client"
	"github.com/sofatutor/portfolio-api/internal/config"
	"github.com/sofatutor/portfolio-api/internal/database"
	"github.com/sofatutor/portfolio-api/internal/obfuscate"
	"github.com/spf13/cobra"
)

// Admin command flags
var (
	adminAPIURL  string
	adminKey     string
	adminLimit   int
	adminUnread  bool
	adminTimeout time.Duration
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Inspect contact submissions and chat transcripts",
	Long: `Admin commands call the protected endpoints of a running server.
The key is read from --key or ADMIN_API_KEY.`,
}

var adminSubmissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "List contact submissions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runAdminSubmissions,
}

var adminReadCmd = &cobra.Command{
	Use:   "read <submission-id>",
	Short: "Mark a submission as read",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminRead,
}

var adminTranscriptCmd = &cobra.Command{
	Use:   "transcript <session-id>",
	Short: "Print the messages of a chat session",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminTranscript,
}

func init() {
	adminCmd.PersistentFlags().StringVar(&adminAPIURL, "api", "", "API base URL (default $PORTFOLIO_API_URL or "+defaultAPIURL+")")
	adminCmd.PersistentFlags().StringVar(&adminKey, "key", "", "Admin API key (default $ADMIN_API_KEY)")
	adminCmd.PersistentFlags().DurationVar(&adminTimeout, "timeout", 15*time.Second, "Request timeout")
	adminSubmissionsCmd.Flags().IntVar(&adminLimit, "limit", 0, "Maximum submissions to list (0 uses the server default)")
	adminSubmissionsCmd.Flags().BoolVar(&adminUnread, "unread", false, "Only list unread submissions")

	adminCmd.AddCommand(adminSubmissionsCmd, adminReadCmd, adminTranscriptCmd)
}

func adminClient() (*client.Client, error) {
	key := adminKey
	if key == "" {
		key = config.EnvOrDefault("ADMIN_API_KEY", "")
	}
	if key == "" {
		return nil, errors.New("admin key required: pass --key or set ADMIN_API_KEY")
	}
	return client.New(apiURL(adminAPIURL), key)
}

func runAdminSubmissions(cmd *cobra.Command, args []string) error {
	c, err := adminClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
	defer cancel()

	list, err := c.ListSubmissions(ctx, adminLimit, adminUnread)
	if err != nil {
		return err
	}
	return printSubmissions(cmd.OutOrStdout(), list)
}

func printSubmissions(out io.Writer, list client.SubmissionList) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRECEIVED\tREAD\tNAME\tEMAIL\tMESSAGE")
	for _, s := range list.Submissions {
		read := "no"
		if s.Read {
			read = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.CreatedAt.UTC().Format(time.RFC3339), read, s.Name, s.Email, preview(s.Message, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d shown, %d unread\n", list.Count, list.Unread)
	return err
}

func runAdminRead(cmd *cobra.Command, args []string) error {
	c, err := adminClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
	defer cancel()

	sub, err := c.MarkRead(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "From: %s <%s>\nReceived: %s\n\n%s\n",
		sub.Name, sub.Email, sub.CreatedAt.UTC().Format(time.RFC3339), sub.Message)
	return nil
}

func runAdminTranscript(cmd *cobra.Command, args []string) error {
	c, err := adminClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
	defer cancel()

	t, err := c.GetTranscript(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s (started %s)\n\n", t.Session.SessionID, t.Session.CreatedAt.UTC().Format(time.RFC3339))
	for _, m := range t.Messages {
		speaker := "Visitor"
		if m.Role == database.RoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.UTC().Format("15:04:05"), speaker, m.Content)
	}
	return nil
}

// preview flattens s to one line and cuts it to n runes.
func preview(s string, n int) string {
	return obfuscate.Text(strings.Join(strings.Fields(s), " "), n)
}
