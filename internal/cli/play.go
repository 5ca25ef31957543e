package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"adaptive-quiz/internal/app"
	"adaptive-quiz/internal/config"
	"adaptive-quiz/internal/domain"
	"github.com/spf13/cobra"
)

// NewPlayCmd runs an interactive quiz session in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var (
		quizID string
		userID string
		rounds int
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Answer a quiz interactively; missed questions come back sooner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			service, cleanup, err := buildService(cmd.Context(), cfg)
			defer cleanup()
			if err != nil {
				return err
			}
			store, quiz, err := service.Start(cmd.Context(), quizID, userID)
			if err != nil {
				return fmt.Errorf("start quiz %s: %w", quizID, err)
			}
			return play(cmd.Context(), store, quiz, rounds, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", defaultQuizID, "quiz id")
	cmd.Flags().StringVar(&userID, "user", "", "user the stats are recorded for")
	cmd.Flags().IntVar(&rounds, "rounds", 1, "sessions to play; later rounds repeat weak questions more often")
	return cmd
}

// play drives store from line-oriented input until the rounds are done, the
// input ends, or the player types "quit". Answers may be given as option text
// or as the 1-based option number.
func play(ctx context.Context, store *app.QuizSessionStore, quiz domain.Quiz, rounds int, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	if quiz.Title != "" {
		fmt.Fprintf(out, "%s\n", quiz.Title)
	}

loop:
	for round := 1; ; {
		question, ok := store.CurrentQuestion()
		if !ok {
			if round >= rounds {
				break loop
			}
			round++
			fmt.Fprintf(out, "\nround %d\n", round)
			store.StartNextRound()
			continue
		}

		printQuestion(out, question)
		if !scanner.Scan() {
			break loop
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "quit":
			store.ResetQuiz()
			break loop
		case "stats":
			printStats(out, store.GetQuizStats(quiz.ID))
			continue
		}

		result, _ := store.AnswerQuestion(ctx, resolveAnswer(question, input))
		if result.Correct {
			fmt.Fprintln(out, "correct")
		} else {
			fmt.Fprintf(out, "wrong, the answer is %s\n", result.Expected)
		}
		if question.Explanation != "" {
			fmt.Fprintln(out, question.Explanation)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read answer: %w", err)
	}

	printStats(out, store.GetQuizStats(quiz.ID))
	return nil
}

func printQuestion(out io.Writer, q domain.Question) {
	fmt.Fprintf(out, "\n%s\n", q.Prompt)
	for i, option := range q.Options {
		fmt.Fprintf(out, "  %d) %s\n", i+1, option)
	}
	fmt.Fprint(out, "> ")
}

func resolveAnswer(q domain.Question, input string) string {
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(q.Options) {
		return q.Options[n-1]
	}
	return input
}

func printStats(out io.Writer, stats domain.QuizStats) {
	fmt.Fprintf(out, "attempts: %d, correct: %d, success rate: %.0f%%\n",
		stats.Attempts, stats.Correct, stats.SuccessRate*100)
}
