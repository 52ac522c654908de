package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/tutor"
	"github.com/spf13/cobra"
)

var tutorCmd = &cobra.Command{
	Use:   "tutor",
	Short: "Work through one question with the tutor in the terminal",
	Long: `Shows a question, records your answer and starts the tutoring dialogue.
Type your replies at the prompt. End input (Ctrl-D) to stop; pass --resume
with the printed conversation ID to continue later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		user, _ := cmd.Flags().GetString("user")
		qid, _ := cmd.Flags().GetString("question")
		choice, _ := cmd.Flags().GetString("choice")
		resume, _ := cmd.Flags().GetString("resume")
		topics, _ := cmd.Flags().GetStringSlice("topic")
		systems, _ := cmd.Flags().GetStringSlice("system")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		provider, err := rt.provider(ctx)
		if err != nil {
			return err
		}
		questions, err := rt.questions(ctx)
		if err != nil {
			return err
		}
		orch := rt.orchestrator(provider)
		sink := tutor.NewStoreSink(rt.store.SnapshotRepo())
		opts := []tutor.Option{tutor.WithSink(sink), tutor.WithLogger(rt.log)}

		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		var conv *tutor.Conversation
		var reply *tutor.Reply
		if resume != "" {
			snap, err := sink.LoadSnapshot(ctx, resume)
			if err != nil {
				return err
			}
			if snap == nil {
				return fmt.Errorf("conversation %s not found", resume)
			}
			q, err := questions.Get(ctx, snap.QuestionID)
			if err != nil {
				return err
			}
			if conv, err = tutor.Restore(orch, snap, q, opts...); err != nil {
				return err
			}
			printQuestion(out, q)
			fmt.Fprintf(out, "You chose (%s). Picking up where you left off.\n\n", conv.Chosen().Upper())
		} else {
			if qid == "" {
				qid, err = questions.RandomUnanswered(ctx, user, question.Filter{Topics: topics, Systems: systems})
				if errors.Is(err, question.ErrNoneAvailable) {
					fmt.Fprintln(out, "You have answered every matching question.")
					return nil
				}
				if err != nil {
					return err
				}
			}
			q, err := questions.Get(ctx, qid)
			if err != nil {
				return err
			}
			printQuestion(out, q)

			chosen, err := readChoice(in, out, choice)
			if err != nil {
				return err
			}
			if err := rt.store.AnswerRepo().RecordAnswer(ctx, user, q.ID, string(chosen)); err != nil {
				return fmt.Errorf("record answer: %w", err)
			}
			if q.IsCorrect(chosen) {
				fmt.Fprintf(out, "\n(%s) is correct.\n\n", chosen.Upper())
			} else {
				fmt.Fprintf(out, "\n(%s) is not the answer.\n\n", chosen.Upper())
			}

			conv = tutor.NewConversation(orch, user, q, chosen, opts...)
			if reply, err = conv.Start(ctx); err != nil {
				return err
			}
			if err := printReply(out, reply); err != nil {
				return err
			}
		}

		for !conv.Done() {
			fmt.Fprint(out, "> ")
			line, err := in.ReadString('\n')
			if errors.Is(err, io.EOF) && strings.TrimSpace(line) == "" {
				fmt.Fprintf(out, "\nConversation saved. Resume with: boardprep tutor --resume %s\n", conv.ID())
				return nil
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if reply, err = conv.Respond(ctx, line); err != nil {
				return err
			}
			if err := printReply(out, reply); err != nil {
				return err
			}
		}
		return nil
	},
}

func printQuestion(w io.Writer, q *question.Question) {
	fmt.Fprintf(w, "%s\n\n", q.Stem)
	for _, l := range question.Labels {
		fmt.Fprintf(w, "  (%s) %s\n", l.Upper(), q.Choice(l).Text)
	}
	fmt.Fprintln(w)
}

// readChoice uses preset when given, otherwise prompts until a valid label
// is entered.
func readChoice(in *bufio.Reader, w io.Writer, preset string) (question.Label, error) {
	if preset != "" {
		return question.ParseLabel(preset)
	}
	for {
		fmt.Fprint(w, "Your answer: ")
		line, err := in.ReadString('\n')
		if l, perr := question.ParseLabel(line); perr == nil {
			return l, nil
		}
		if err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
		fmt.Fprintln(w, "Enter a letter from A to E.")
	}
}

// printReply writes fragments as they arrive.
func printReply(w io.Writer, reply *tutor.Reply) error {
	s := reply.Stream()
	defer s.Close()
	for s.Next() {
		if _, err := io.WriteString(w, s.Text()); err != nil {
			return err
		}
	}
	fmt.Fprint(w, "\n\n")
	return s.Err()
}

func init() {
	tutorCmd.Flags().StringP("user", "u", "local", "Student ID")
	tutorCmd.Flags().StringP("question", "q", "", "Question ID (default: a random unanswered question)")
	tutorCmd.Flags().StringP("choice", "c", "", "Answer label, skips the prompt")
	tutorCmd.Flags().String("resume", "", "Conversation ID to resume")
	tutorCmd.Flags().StringSlice("topic", nil, "Only pick questions with these topics")
	tutorCmd.Flags().StringSlice("system", nil, "Only pick questions for these organ systems")
}
