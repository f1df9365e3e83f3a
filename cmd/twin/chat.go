package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"twin/internal/httpclient"
)

func newChatCommand() *cobra.Command {
	opts := &clientOptions{}
	var sessionID string
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to a running twin server",
		Long:  "With a message argument, sends it once and prints the reply. Without one, starts an interactive session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			renderer, err := NewMarkdownRenderer(plain || !isTTY())
			if err != nil {
				return err
			}
			session := &chatSession{client: client, renderer: renderer, sessionID: sessionID, out: cmd.OutOrStdout()}
			if len(args) > 0 {
				return session.send(cmd.Context(), strings.Join(args, " "))
			}
			return session.interactive(cmd.Context())
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().BoolVar(&plain, "plain", false, "disable colour rendering")
	return cmd
}

type chatSession struct {
	client    *httpclient.Client
	renderer  *MarkdownRenderer
	sessionID string
	out       io.Writer
}

func (s *chatSession) send(ctx context.Context, message string) error {
	reply, err := s.client.Chat(ctx, message, s.sessionID)
	if err != nil {
		return err
	}
	if s.sessionID == "" {
		fmt.Fprintln(s.out, DeepStatus("session "+reply.SessionID))
	}
	s.sessionID = reply.SessionID
	fmt.Fprintf(s.out, "%s\n%s\n\n", roleLabel("assistant"), s.renderer.Render(reply.Response))
	return nil
}

// handleCommand runs a slash command and reports whether the loop should stop.
func (s *chatSession) handleCommand(ctx context.Context, line string) (bool, error) {
	switch strings.Fields(line)[0] {
	case "/exit", "/quit":
		return true, nil
	case "/new":
		s.sessionID = ""
		fmt.Fprintln(s.out, DeepStatus("started a new session"))
	case "/session":
		if s.sessionID == "" {
			fmt.Fprintln(s.out, DeepStatus("no session yet"))
		} else {
			fmt.Fprintln(s.out, DeepStatus("session "+s.sessionID))
		}
	case "/history":
		if s.sessionID == "" {
			fmt.Fprintln(s.out, DeepStatus("no session yet"))
			return false, nil
		}
		conv, err := s.client.Conversation(ctx, s.sessionID)
		if err != nil {
			return false, err
		}
		printConversation(s.out, conv)
	default:
		fmt.Fprintln(s.out, DeepStatus("commands: /new /session /history /exit"))
	}
	return false, nil
}

func (s *chatSession) interactive(ctx context.Context) error {
	fmt.Fprintln(s.out, bold("twin chat"))
	fmt.Fprintln(s.out, DeepStatus("Type a message and press Enter. /exit to quit, /help for commands."))

	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cyan("> "),
		HistoryFile:     filepath.Join(homeDir, ".twin-history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           readline.NewCancelableStdin(os.Stdin),
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
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
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			stop, err := s.handleCommand(ctx, line)
			if err != nil {
				fmt.Fprintln(s.out, DeepError(err.Error()))
			}
			if stop {
				return nil
			}
			continue
		}
		if err := s.send(ctx, line); err != nil {
			fmt.Fprintln(s.out, DeepError(err.Error()))
		}
	}
}
