package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph [env-files...]",
		Short: "Print the dependency report for the given environments",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			return c.app.Graph(cmd.Context(), args, treeOptions(cmd), cmd.OutOrStdout())
		},
	}
	addTreeFlags(cmd)
	return cmd
}
