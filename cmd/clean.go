package cmd

import (
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Removes the environment and output directories",
	Long: `Deletes the isolated tool environment and the artifact output directory.
Missing directories are not an error, so clean can run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipelineTask(cmd, "clean", true)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
