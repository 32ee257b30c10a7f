// cmd/shopping-assistant/chat.go
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shopping-assistant/internal/models"
)

var chatServerURL string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a running server from the terminal",
	Long: `chat reads one message per line, streams the assistant's reply and prints
any shopping results as they arrive.

Type /reset to clear the conversation and exit or quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session := newChatSession(chatServerURL, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return session.Run(cmd.Context(), cmd.InOrStdin())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatServerURL, "server", envOr("ASSISTANT_URL", "http://localhost:8000"), "base URL of the chat API")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// chatSession keeps the conversation history on the client side; the server
// is stateless between turns.
type chatSession struct {
	endpoint string
	client   *http.Client
	out      io.Writer
	errOut   io.Writer
	history  []models.Message
}

func newChatSession(baseURL string, out, errOut io.Writer) *chatSession {
	return &chatSession{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/chat",
		client:   &http.Client{},
		out:      out,
		errOut:   errOut,
	}
}

func (s *chatSession) Run(ctx context.Context, in io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintln(s.out, "Ask about supplements. /reset clears the chat, exit quits.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/reset":
			s.history = nil
			fmt.Fprintln(s.out, "(conversation cleared)")
			continue
		}

		if err := s.Send(ctx, line); err != nil {
			fmt.Fprintf(s.errOut, "error: %v\n", err)
		}
	}
}

// Send posts message with the history so far and prints the streamed reply.
// The exchange joins the history only when the server accepted the request.
func (s *chatSession) Send(ctx context.Context, message string) error {
	messages := append(append([]models.Message(nil), s.history...), models.Message{
		ID:      models.MessageID(strconv.FormatInt(time.Now().UnixMilli(), 10)),
		Role:    models.RoleUser,
		Content: message,
	})

	body, err := json.Marshal(models.ChatRequest{Messages: messages})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	reply, results, err := s.consume(resp.Body)
	fmt.Fprintln(s.out)
	for i, r := range results {
		printResult(s.out, i+1, r)
	}

	s.history = messages
	if reply != "" {
		s.history = append(s.history, models.Message{
			ID:      models.MessageID(strconv.FormatInt(time.Now().UnixMilli(), 10)),
			Role:    models.RoleAssistant,
			Content: reply,
		})
	}
	return err
}

func (s *chatSession) consume(r io.Reader) (string, []models.ShoppingResult, error) {
	var (
		reply   strings.Builder
		results []models.ShoppingResult
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var ev models.StreamEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			fmt.Fprintf(s.errOut, "skipping malformed line: %v\n", err)
			continue
		}

		switch ev.Type {
		case models.EventAssistantResponse:
			reply.WriteString(ev.Text())
			fmt.Fprint(s.out, ev.Text())
		case models.EventShoppingResult:
			if r, ok := ev.Result(); ok {
				results = append(results, r)
			}
		case models.EventError:
			fmt.Fprintf(s.errOut, "\n[error] %s\n", ev.Text())
		}
	}
	return reply.String(), results, scanner.Err()
}

func printResult(w io.Writer, n int, r models.ShoppingResult) {
	fmt.Fprintf(w, "\n[%d] %s", n, r.Title)
	if r.Price != "" {
		fmt.Fprintf(w, " (%s)", r.Price)
	}
	fmt.Fprintln(w)
	if r.Link != "" {
		fmt.Fprintf(w, "    %s\n", r.Link)
	}
	if r.Formula != "" {
		for _, line := range strings.Split(strings.TrimSpace(r.Formula), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}
