package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")

	sess, err := a.service.NewSession(ctx, question)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	answer, err := a.service.Submit(ctx, sess.ID, question)
	if err != nil {
		return err
	}

	printAnswer(answer)
	return nil
}
