package commands

import (
	"github.com/spf13/cobra"
	"go.kiln.dev/kiln/internal/app"
	"go.kiln.dev/kiln/internal/core/domain"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove build output and cached state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			caches, _ := cmd.Flags().GetBool("caches")
			all, _ := cmd.Flags().GetBool("all")
			outputFolder, _ := cmd.Flags().GetString("output-folder")

			opts := app.CleanOptions{
				Output:       false,
				Caches:       false,
				OutputFolder: outputFolder,
			}

			switch {
			case all:
				opts.Output = true
				opts.Caches = true
			case caches:
				opts.Caches = true
			default:
				// Default behavior: clean the build output folder
				opts.Output = true
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolP("caches", "c", false, "Remove feedstock checkouts and the package index cache")
	cmd.Flags().BoolP("all", "a", false, "Remove the build output folder and all caches")
	cmd.Flags().String("output-folder", domain.DefaultOutputFolder, "Build output folder to remove")

	return cmd
}
