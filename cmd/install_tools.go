package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/natanjunges/dist-tools/pkg"
)

var installToolsCmd = &cobra.Command{
	Use:   "install-tools",
	Short: "Installs Go CLI tools into the environment",
	Long: `Installs the tools imported by the project's tools.go into the
environment's bin directory. That directory is on PATH for all task
commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, projectRoot, cfg, err := setupContext(cmd)
		if err != nil {
			return err
		}

		env := pkg.NewEnvironment(projectRoot, cfg)
		err = os.MkdirAll(env.BinPath(), 0770)
		if err != nil {
			return err
		}

		return pkg.InstallGoTools(projectRoot, env)
	},
}

func init() {
	rootCmd.AddCommand(installToolsCmd)
}
