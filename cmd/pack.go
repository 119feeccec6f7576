package cmd

import (
	"github.com/spf13/cobra"

	"github.com/natanjunges/dist-tools/pkg"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Packs the project sources without touching the environment",
	Long: `Builds the configured artifact archives directly. Unlike the build task
this skips the environment setup, which is handy when only the packer itself
is needed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, _, projectRoot, cfg, err := setupContext(cmd)
		if err != nil {
			return err
		}

		pkg.PrintTask("Building artifacts")
		artifacts, err := pkg.PackDist(ctx, projectRoot, cfg)
		if err != nil {
			return err
		}

		pkg.PrintTask("Done")
		for _, artifact := range artifacts {
			pkg.PrintSubtask(artifact.Sha256 + "  " + artifact.Path)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(packCmd)
}
