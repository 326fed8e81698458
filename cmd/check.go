package cmd

import (
	"modkit/internal/config"

	"github.com/spf13/cobra"
)

// checkCmd validates configuration without starting the runtime.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print the resolved result",
	Long: `check loads configuration through the same layered
ConfigLoader the server uses, runs validation, and on success prints the
resolved configuration as YAML. On failure it prints the structured
configuration error and exits non-zero.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, cliOverrides(cmd))
	if err != nil {
		return err
	}

	return printYAML(cmd, cfg)
}
