package commands

import (
	"github.com/spf13/cobra"
	"go.kiln.dev/kiln/internal/app"
)

func (c *CLI) newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [env-files...]",
		Short: "Check that the given environments form a buildable dependency tree",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			watch, _ := cmd.Flags().GetBool("watch")

			return c.app.Validate(cmd.Context(), args, app.ValidateOptions{
				TreeOptions: treeOptions(cmd),
				Watch:       watch,
			})
		},
	}
	addTreeFlags(cmd)
	cmd.Flags().BoolP("watch", "w", false, "Keep running and revalidate when an environment file changes")
	return cmd
}
