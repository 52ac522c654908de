package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/abhisek/boardprep/internal/chathistory"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask the tutor open-ended questions",
	Long: `Starts a free-form chat with the tutor. Long chats are summarized in the
background so the tutor keeps the thread without resending everything.
Type /summary to see the current summary. End input (Ctrl-D) to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		provider, err := rt.provider(ctx)
		if err != nil {
			return err
		}
		h := chathistory.New(provider, rt.chatConfig(), rt.log)
		defer h.Wait()
		system := rt.chatSystemPrompt()

		in := bufio.NewScanner(cmd.InOrStdin())
		out := cmd.OutOrStdout()
		for {
			fmt.Fprint(out, "> ")
			if !in.Scan() {
				fmt.Fprintln(out)
				return in.Err()
			}
			text := strings.TrimSpace(in.Text())
			switch text {
			case "":
				continue
			case "/summary":
				if s := h.Summary(); s != nil {
					fmt.Fprintf(out, "%s\n\n", s)
				} else {
					fmt.Fprintln(out, "Nothing summarized yet.")
				}
				continue
			}

			stream, err := h.SendStream(ctx, system, text)
			var tooLong *chathistory.MessageTooLongError
			if errors.As(err, &tooLong) {
				fmt.Fprintf(out, "That message has %d words; keep it under %d.\n", tooLong.Words, tooLong.Limit)
				continue
			}
			if err != nil {
				fmt.Fprintf(out, "The tutor is unavailable: %v\n", err)
				continue
			}
			for stream.Next() {
				if _, err := io.WriteString(out, stream.Text()); err != nil {
					_ = stream.Close()
					return err
				}
			}
			if err := stream.Err(); err != nil {
				fmt.Fprintf(out, "\n(reply interrupted: %v)", err)
			}
			_ = stream.Close()
			fmt.Fprint(out, "\n\n")
		}
	},
}
