package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a student's answer history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		user, _ := cmd.Flags().GetString("user")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		answers, err := rt.store.AnswerRepo().Answers(ctx, user)
		if err != nil {
			return fmt.Errorf("query answers: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(answers) == 0 {
			fmt.Fprintf(out, "No answers recorded for %s.\n", user)
			return nil
		}

		questions, err := rt.questions(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%-19s  %-16s  %-6s  %s\n", "Answered", "Question", "Chose", "Result")
		fmt.Fprintln(out, strings.Repeat("─", 56))
		var graded, correct int
		for _, a := range answers {
			result := "?"
			if q, err := questions.Get(ctx, a.QuestionID); err == nil {
				graded++
				if string(q.Answer) == a.Chosen {
					correct++
					result = "✓"
				} else {
					result = "✗ (" + q.Answer.Upper() + ")"
				}
			}
			fmt.Fprintf(out, "%-19s  %-16s  %-6s  %s\n",
				a.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncate(a.QuestionID, 16),
				"("+strings.ToUpper(a.Chosen)+")",
				result,
			)
		}
		fmt.Fprintln(out, strings.Repeat("─", 56))
		if graded > 0 {
			fmt.Fprintf(out, "%d answered, %d correct (%.0f%%)\n", len(answers), correct, 100*float64(correct)/float64(graded))
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().StringP("user", "u", "local", "Student ID")
}
