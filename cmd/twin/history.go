package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"twin/internal/httpclient"
)

func newHistoryCommand() *cobra.Command {
	opts := &clientOptions{}
	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Print a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			conv, err := client.Conversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printConversation(cmd.OutOrStdout(), conv)
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

func printConversation(w io.Writer, conv httpclient.Conversation) {
	fmt.Fprintln(w, DeepStatus("session "+conv.SessionID))
	if len(conv.Messages) == 0 {
		fmt.Fprintln(w, DeepStatus("(no messages)"))
		return
	}
	for _, msg := range conv.Messages {
		fmt.Fprintf(w, "%s %s\n%s\n\n", roleLabel(msg.Role), gray(msg.Timestamp.Local().Format("2006-01-02 15:04:05")), msg.Content)
	}
}
