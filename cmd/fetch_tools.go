package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/natanjunges/dist-tools/pkg"
)

var fetchToolsCmd = &cobra.Command{
	Use:   "fetch-tools",
	Short: "Downloads and unpacks the pinned external tools",
	Long: `Downloads the tools pinned in dist.yml into the environment directory,
verifies their checksums and unpacks them. Tools that are already present
with a matching stamp are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := cmd.Flags().GetBool("update")
		if err != nil {
			return err
		}

		ctx, _, projectRoot, cfg, err := setupContext(cmd)
		if err != nil {
			return err
		}

		env := pkg.NewEnvironment(projectRoot, cfg)
		err = os.MkdirAll(env.BinPath(), 0770)
		if err != nil {
			return err
		}

		pkg.PrintTask("Downloading tools")
		err = pkg.FetchTools(ctx, projectRoot, cfg, env, update)
		if err != nil {
			return err
		}

		pkg.PrintTask("Done")
		return nil
	},
}

func init() {
	fetchToolsCmd.Flags().BoolP("update", "u", false, "Update checksums in dist.yml instead of failing on mismatch")
	rootCmd.AddCommand(fetchToolsCmd)
}
