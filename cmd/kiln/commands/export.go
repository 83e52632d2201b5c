package commands

import (
	"github.com/spf13/cobra"
	"go.kiln.dev/kiln/internal/app"
	"go.kiln.dev/kiln/internal/core/domain"
)

func (c *CLI) newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [env-files...]",
		Short: "Write the per variant conda environment files without building",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			outputFolder, _ := cmd.Flags().GetString("output-folder")

			return c.app.Export(cmd.Context(), args, app.ExportOptions{
				TreeOptions:  treeOptions(cmd),
				OutputFolder: outputFolder,
			})
		},
	}
	addTreeFlags(cmd)
	cmd.Flags().String("output-folder", domain.DefaultOutputFolder, "Folder the environment files land in")
	return cmd
}
