// Command worker boots the key/value examplemodule as an out-of-process
// child: it reads its rendered configuration from MODKIT_MODULE_CONFIG
// and registers with the directory service at MODKIT_DIRECTORY_ENDPOINT
// when the parent host spawns it. It can also be run directly in
// standalone mode with a local --config file, without a parent process.
package main

import (
	"flag"
	"fmt"
	"os"

	"modkit/internal/bootstrap"
	"modkit/internal/config"
	"modkit/internal/examplemodule"
	"modkit/internal/module"
	"modkit/pkg/logging"
)

func main() {
	var (
		name       = flag.String("name", "kv-worker", "module name this instance registers as")
		configPath = flag.String("config", "", "local configuration file (optional; standalone mode)")
		verbosity  = flag.Int("v", 0, "logging verbosity (0-3)")
	)
	flag.Parse()

	level := logging.LevelWarn
	switch {
	case *verbosity == 1:
		level = logging.LevelInfo
	case *verbosity >= 2:
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)

	err := bootstrap.RunOopWithOptions(bootstrap.OopOptions{
		ModuleName: *name,
		ConfigPath: *configPath,
		CLI:        config.CLIOverrides{Verbosity: *verbosity},
		Modules:    []module.Module{examplemodule.New(*name)},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
