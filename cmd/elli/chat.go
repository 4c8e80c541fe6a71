package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/chatview"
	"github.com/set-night/elli/internal/client"
	"github.com/set-night/elli/internal/domain"
	"github.com/spf13/cobra"
)

const chatHelp = `commands:
  /new                 start a new conversation
  /usage               show the remaining allowance
  /good, /bad          rate the last answer
  /docs on|off         toggle document search
  /web on|off          toggle web search
  /scrape on|off       toggle web scraping
  /quit                exit`

func newChatCmd() *cobra.Command {
	var (
		apiURL    string
		token     string
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat against a running elli API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("an access token is required (--token or ELLI_TOKEN)")
			}
			conv := client.NewConversation(client.New(apiURL, token))
			if sessionID != "" {
				id, err := uuid.Parse(sessionID)
				if err != nil {
					return fmt.Errorf("invalid session id: %w", err)
				}
				if err := conv.Open(cmd.Context(), id); err != nil {
					return err
				}
			}
			return runREPL(cmd.Context(), conv, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", envOr("ELLI_API_URL", "http://localhost:3000"), "base URL of the elli API")
	cmd.Flags().StringVar(&token, "token", os.Getenv("ELLI_TOKEN"), "bearer token")
	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runREPL(ctx context.Context, conv *client.Conversation, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, chatHelp)
	for _, m := range conv.View.Items {
		printMessage(out, m.Message)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := runCommand(ctx, conv, line, out)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
			}
			if quit {
				return nil
			}
			continue
		}

		res, err := conv.Send(ctx, line)
		printNotices(out, conv.View.TakeNotices())
		if err != nil {
			if !errors.Is(err, chatview.ErrEmptyDraft) {
				fmt.Fprintln(out, "error:", err)
			}
			continue
		}
		printMessage(out, *res.Assistant)
	}
}

func runCommand(ctx context.Context, conv *client.Conversation, line string, out io.Writer) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/new":
		conv.Reset()
		fmt.Fprintln(out, "new conversation")
	case "/usage":
		status, err := conv.API().Usage(ctx)
		if err != nil {
			return false, err
		}
		if status.Unlimited {
			fmt.Fprintf(out, "plan %s: %d chats used, unlimited\n", status.PlanID, status.Used)
		} else {
			fmt.Fprintf(out, "plan %s: %d of %d chats used, %d remaining\n", status.PlanID, status.Used, status.Limit, status.Remaining)
		}
		printNotices(out, status.Notices)
	case "/good", "/bad":
		last, ok := conv.LastAssistant()
		if !ok {
			return false, errors.New("nothing to rate yet")
		}
		comment := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		if err := conv.Rate(ctx, last.ID, fields[0] == "/good", comment); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "thanks for the feedback")
	case "/docs", "/web", "/scrape":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return false, fmt.Errorf("usage: %s on|off", fields[0])
		}
		tools := toggleTool(conv.View.Tools, fields[0], fields[1] == "on")
		if err := conv.SetTools(tools); err != nil {
			return false, err
		}
		flags := tools.Flags()
		fmt.Fprintf(out, "docs=%t web=%t scrape=%t\n", flags.DocumentSearch, flags.WebSearch, flags.WebScraping)
	default:
		fmt.Fprintln(out, chatHelp)
	}
	return false, nil
}

func toggleTool(tools domain.ToolSet, name string, on bool) domain.ToolSet {
	switch name {
	case "/docs":
		tools.Document = nil
		if on {
			tools.Document = domain.DefaultDocumentSearch()
		}
	case "/web":
		tools.Web = nil
		if on {
			tools.Web = domain.DefaultWebSearch()
		}
	case "/scrape":
		tools.Scrape = nil
		if on {
			tools.Scrape = domain.DefaultWebScraping()
		}
	}
	return tools
}

func printMessage(out io.Writer, m domain.Message) {
	who := "elli"
	if m.IsUser {
		who = "you"
	}
	fmt.Fprintf(out, "%s: %s\n", who, m.Content)
	for _, s := range m.Sources {
		fmt.Fprintf(out, "  [%s] %s %s (%.0f%%)\n", s.ID, s.Title, s.URL, s.Confidence*100)
	}
}

func printNotices(out io.Writer, notices []domain.Notice) {
	for _, n := range notices {
		fmt.Fprintf(out, "[%s] %s: %s\n", n.Level, n.Title, n.Message)
	}
}
