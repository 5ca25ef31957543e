package cli

import (
	"encoding/json"
	"fmt"

	"adaptive-quiz/internal/config"
	"github.com/spf13/cobra"
)

// NewStatsCmd prints the aggregate stats of a quiz.
func NewStatsCmd(configPath *string) *cobra.Command {
	var (
		quizID string
		userID string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show attempts and success rate for a quiz",
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

			stats := service.QuizStats(cmd.Context(), quizID, userID)
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ", quizID)
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", defaultQuizID, "quiz id")
	cmd.Flags().StringVar(&userID, "user", "", "user the stats were recorded for")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// NewClearStatsCmd erases every recorded stat of a user.
func NewClearStatsCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "clear-stats",
		Short: "Erase recorded stats",
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
			service.ClearStats(cmd.Context(), userID)
			fmt.Fprintln(cmd.OutOrStdout(), "stats cleared")
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user whose stats are erased")
	return cmd
}
