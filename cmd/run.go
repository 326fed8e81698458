package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"modkit/internal/bootstrap"
	"modkit/internal/config"
	"modkit/internal/examplemodule"
	"modkit/internal/module"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// runCmd is the default subcommand: the full server lifecycle.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ModKit host (default command)",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

// cliOverrides projects the CLI's persistent flags onto
// config.CLIOverrides, the highest-precedence configuration layer.
func cliOverrides(cmd *cobra.Command) config.CLIOverrides {
	overrides := config.CLIOverrides{Verbosity: verbosity}
	if cmd.Flags().Changed("port") {
		p := portOverride
		overrides.Port = &p
	}
	return overrides
}

// exampleModules returns the in-process modules ModKit ships out of the
// box. Today that is just the examplemodule key/value store.
func exampleModules() []module.Module {
	return []module.Module{examplemodule.New("kv")}
}

// runRun dispatches to one of the inspection flags (--print-config,
// --list-modules, --dump-modules-config-yaml/json) if set, otherwise
// runs the full server lifecycle via bootstrap.RunServer.
func runRun(cmd *cobra.Command, args []string) error {
	if printConfig || listModules || dumpModulesYAML || dumpModulesJSON {
		return runInspect(cmd)
	}

	return bootstrap.RunServer(bootstrap.ServerOptions{
		ConfigPath:       configPath,
		CLI:              cliOverrides(cmd),
		InProcessModules: exampleModules(),
	})
}

func runInspect(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath, cliOverrides(cmd))
	if err != nil {
		return err
	}

	if printConfig {
		return printYAML(cmd, cfg)
	}

	if listModules {
		return runListModules(cmd, cfg)
	}

	if dumpModulesYAML {
		return dumpRenderedModules(cmd, cfg, false)
	}

	return dumpRenderedModules(cmd, cfg, true)
}

func printYAML(cmd *cobra.Command, v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

// runListModules registers this binary's in-process modules plus every
// OoP module declared in cfg.Modules and prints the registry's
// topologically-sorted order.
func runListModules(cmd *cobra.Command, cfg config.AppConfig) error {
	registry := module.NewRegistry()
	for _, mod := range exampleModules() {
		if err := registry.Register(mod); err != nil {
			return err
		}
	}
	for name, mc := range cfg.Modules {
		if mc == nil || mc.Runtime == nil || mc.Runtime.Type != config.RuntimeOutOfProcess {
			continue
		}
		if err := registry.RegisterOutOfProcess(name, nil, module.NewCapabilitySet(module.CapabilityStart)); err != nil {
			return err
		}
	}

	records, err := registry.Ordered()
	if err != nil {
		return err
	}

	for _, rec := range records {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", rec.Name, rec.RuntimeKind)
	}
	return nil
}

// dumpRenderedModules prints, for every OoP module in cfg.Modules, the
// RenderedModuleConfig the renderer would produce at spawn time, without
// spawning anything, so an operator can audit exactly what a child will see.
func dumpRenderedModules(cmd *cobra.Command, cfg config.AppConfig, asJSON bool) error {
	names := make([]string, 0, len(cfg.Modules))
	for name, mc := range cfg.Modules {
		if mc != nil && mc.Runtime != nil && mc.Runtime.Type == config.RuntimeOutOfProcess {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	rendered := make(map[string]*config.RenderedModuleConfig, len(names))
	for _, name := range names {
		rendered[name] = config.Render(cfg, name)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rendered)
	}
	return printYAML(cmd, rendered)
}
