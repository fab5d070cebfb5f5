package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newAskCmd creates the 'ask' subcommand.
func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <doc-id> <question...>",
		Short: "Ask a question about an ingested website",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			question := strings.Join(args[1:], " ")
			answer, err := appInstance.Cache.Query(cmd.Context(), args[0], question, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}
