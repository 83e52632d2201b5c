package commands

import (
	"github.com/spf13/cobra"
	"go.kiln.dev/kiln/internal/app"
	"go.kiln.dev/kiln/internal/core/domain"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [env-files...]",
		Short: "Build the packages of the given environments in dependency order",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			packages, _ := cmd.Flags().GetStringSlice("packages")
			outputFolder, _ := cmd.Flags().GetString("output-folder")
			skipBuild, _ := cmd.Flags().GetBool("skip-build")
			outputMode, _ := cmd.Flags().GetString("output-mode")
			tui, _ := cmd.Flags().GetBool("tui")

			// If --tui is set, override output-mode to "tui"
			if tui {
				outputMode = "tui"
			}

			return c.app.Build(cmd.Context(), args, app.BuildOptions{
				TreeOptions:  treeOptions(cmd),
				Packages:     packages,
				OutputFolder: outputFolder,
				SkipBuild:    skipBuild,
				OutputMode:   outputMode,
			})
		},
	}
	addTreeFlags(cmd)
	cmd.Flags().StringSliceP("packages", "p", nil, "Build only the named packages and their dependencies")
	cmd.Flags().String("output-folder", domain.DefaultOutputFolder, "Folder built packages and environment files land in")
	cmd.Flags().Bool("skip-build", false, "Validate and write environment files without running builds")
	cmd.Flags().StringP("output-mode", "o", "auto", "Output mode: auto, tui, or linear")
	cmd.Flags().Bool("tui", false, "Use the interactive renderer (shorthand for --output-mode=tui)")
	return cmd
}
