package cmd

import (
	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Sets up the isolated tool environment",
	Long: `Creates the environment directory if it is missing and installs the
pinned external tools and Go CLI tools into it. Running this on a valid
environment does nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipelineTask(cmd, "env", false)
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
