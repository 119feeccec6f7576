package cmd

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Builds distributable artifacts",
	Long: `Ensures the tool environment exists and packs the project sources into
one archive per configured format, plus a SHA256SUMS manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		return runPipelineTask(cmd, "build", force)
	},
}

func init() {
	buildCmd.Flags().BoolP("force", "f", false, "rebuild even if the artifacts are up to date")
	rootCmd.AddCommand(buildCmd)
}
