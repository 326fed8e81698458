package cmd

import (
	"modkit/internal/bootstrap"

	"github.com/spf13/cobra"
)

// migrateCmd runs PreInit -> Migrate only and exits.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run pending module database migrations and exit",
	Long: `migrate runs the PreInit and Migrate phases for every module
that declares database capability, then exits. It never reaches Start,
so it never binds sockets or spawns out-of-process modules. Re-running
it is safe: migrations must be idempotent.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	return bootstrap.RunMigrate(bootstrap.MigrateOptions{
		ConfigPath: configPath,
		CLI:        cliOverrides(cmd),
		Modules:    exampleModules(),
	})
}
