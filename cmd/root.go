package cmd

import (
	"os"

	"modkit/internal/apperror"
	"modkit/pkg/logging"

	"github.com/spf13/cobra"
)

// ExitCodeError is returned for any fatal initialization, migration, or
// runtime error. Cobra handles the zero-on-success case itself.
const ExitCodeError = 1

// rootCmd is the base command for the modkit host binary. It is the
// entry point when the application is called without any subcommands,
// which defaults to "run".
var rootCmd = &cobra.Command{
	Use:   "modkit",
	Short: "Boot and supervise ModKit's in-process and out-of-process modules",
	Long: `modkit is the modular runtime host: it resolves layered
configuration, walks the registered modules through PreInit, Migrate,
Init, Start, and Running, and spawns out-of-process modules as child
processes supervised on a single root cancellation token.`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
	RunE:              runRun,
}

// initLogging wires the -v/-vv/-vvv verbosity counter onto the package-
// level logger before any subcommand runs. Diagnostics go to stderr so
// stdout stays free for the stable "[OK]"/config-dump text tooling
// matches on.
func initLogging(cmd *cobra.Command, args []string) error {
	level := logging.LevelWarn
	switch {
	case verbosity == 1:
		level = logging.LevelInfo
	case verbosity == 2:
		level = logging.LevelDebug
	case verbosity >= 3:
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)
	return nil
}

// SetVersion sets the version for the root command. Called from main
// with the build-time injected version string.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the CLI's entry point, called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "modkit version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error to a process exit code. Every error kind is
// fatal-general today; the branch exists so adding a semantically
// distinct exit code later doesn't require restructuring Execute.
func getExitCode(err error) int {
	if apperror.Is(err, apperror.KindConfigLoad) || apperror.Is(err, apperror.KindConfigValidation) {
		return ExitCodeError
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration file")
	rootCmd.PersistentFlags().IntVar(&portOverride, "port", 0, "override server.port")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase logging verbosity (-v, -vv, -vvv)")

	rootCmd.PersistentFlags().BoolVar(&printConfig, "print-config", false, "print the resolved configuration as YAML and exit")
	rootCmd.PersistentFlags().BoolVar(&listModules, "list-modules", false, "print the registry's dependency-ordered module list and exit")
	rootCmd.PersistentFlags().BoolVar(&dumpModulesYAML, "dump-modules-config-yaml", false, "print every OoP module's rendered config as YAML and exit")
	rootCmd.PersistentFlags().BoolVar(&dumpModulesJSON, "dump-modules-config-json", false, "print every OoP module's rendered config as JSON and exit")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
}

// Flags shared across subcommands.
var (
	configPath      string
	portOverride    int
	verbosity       int
	printConfig     bool
	listModules     bool
	dumpModulesYAML bool
	dumpModulesJSON bool
)
