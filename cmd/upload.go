package cmd

import (
	"github.com/spf13/cobra"

	"github.com/natanjunges/dist-tools/pkg"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Publishes the built artifacts to the package index",
	Long: `Uploads every artifact listed in the SHA256SUMS manifest to the index
configured in dist.yml. Credentials are read from ` + pkg.IndexUserVar + ` and
` + pkg.IndexTokenVar + `. Fails if no artifacts have been built.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipelineTask(cmd, "upload", false)
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
