package cmd

import (
	"fmt"
	"strings"

	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/review"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Draft and list open-ended review questions",
}

var reviewDraftCmd = &cobra.Command{
	Use:   "draft <question-id> <choice>",
	Short: "Draft a review question targeting the misconception behind a choice",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		user, _ := cmd.Flags().GetString("user")
		chosen, err := question.ParseLabel(args[1])
		if err != nil {
			return err
		}

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
		q, err := questions.Get(ctx, args[0])
		if err != nil {
			return err
		}

		d := review.NewDrafter(provider, rt.store.ReviewRepo(), review.DefaultConfig(), rt.log)
		rq, err := d.Draft(ctx, q, chosen, user)
		if err != nil {
			return fmt.Errorf("draft review question: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:       %s\n", rq.ID)
		fmt.Fprintf(out, "Question: %s\n", rq.Question)
		fmt.Fprintln(out, "A good answer covers:")
		for _, c := range rq.AnswerCriteria {
			fmt.Fprintf(out, "  - %s\n", c)
		}
		return nil
	},
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved review questions for a student",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		saved, err := rt.store.ReviewRepo().ReviewQuestions(cmd.Context(), user)
		if err != nil {
			return fmt.Errorf("query review questions: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(saved) == 0 {
			fmt.Fprintln(out, "No review questions yet.")
			return nil
		}

		fmt.Fprintf(out, "%-19s  %-12s  %-6s  %s\n", "Created", "Question", "Chose", "Review question")
		fmt.Fprintln(out, strings.Repeat("─", 90))
		for _, rq := range saved {
			fmt.Fprintf(out, "%-19s  %-12s  %-6s  %s\n",
				rq.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				truncate(rq.QuestionID, 12),
				"("+strings.ToUpper(rq.Chosen)+")",
				rq.Question,
			)
		}
		return nil
	},
}

func init() {
	reviewCmd.PersistentFlags().StringP("user", "u", "local", "Student ID")
	reviewCmd.AddCommand(reviewDraftCmd)
	reviewCmd.AddCommand(reviewListCmd)
}
