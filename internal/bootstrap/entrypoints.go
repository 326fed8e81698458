// Package bootstrap wires together the cancellation tree, the config
// loader, the module registry, and HostRuntime into the three process
// entrypoints: RunServer, RunMigrate, and RunOopWithOptions. It is the
// only package allowed to call os.Exit-adjacent things like signal
// hooking and stdout "[OK]" lines; everything else in the tree stays a
// pure library.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"modkit/internal/apperror"
	"modkit/internal/cancel"
	"modkit/internal/config"
	"modkit/internal/directory"
	"modkit/internal/module"
	"modkit/internal/oop"
	"modkit/internal/runtime"
	"modkit/pkg/logging"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Environment variable names shared between the parent (renderer and
// spawn backend) and the child (merge) halves of the OoP boot protocol.
const (
	EnvModuleConfig      = "MODKIT_MODULE_CONFIG"
	EnvDirectoryEndpoint = "MODKIT_DIRECTORY_ENDPOINT"
	EnvConfigPath        = "MODKIT_CONFIG_PATH"
)

// ServerOptions configures run_server.
type ServerOptions struct {
	ConfigPath string
	CLI        config.CLIOverrides
	// InProcessModules are registered with the registry before the phase
	// machine runs. Out-of-process modules are discovered straight from
	// AppConfig.Modules (any module whose runtime.type is "oop").
	InProcessModules []module.Module
}

// RunServer is the host binary's main entrypoint: the full lifecycle,
// including OoP spawning.
func RunServer(opts ServerOptions) error {
	cfg, err := config.Load(opts.ConfigPath, opts.CLI)
	if err != nil {
		return err
	}

	tree := cancel.New(context.Background())
	tree.HookSignals()

	if opts.ConfigPath != "" {
		watchCtx, cancelWatch := tree.Child()
		defer cancelWatch()
		if werr := config.WatchFile(watchCtx, opts.ConfigPath); werr != nil {
			logging.Warn("Bootstrap", "could not watch config file %s: %v", opts.ConfigPath, werr)
		}
	}

	registry := module.NewRegistry()
	if err := registerModules(registry, opts.InProcessModules, cfg); err != nil {
		return err
	}

	dirService := directory.NewService(time.Duration(config.DefaultHeartbeatSecs) * time.Second)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return apperror.Wrap(apperror.KindStartFailed, "binding directory gRPC listener", err)
	}
	grpcServer := grpc.NewServer()
	directory.RegisterServer(grpcServer, dirService)

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- grpcServer.Serve(lis)
	}()

	backend := oop.NewLocalProcessBackend()
	host := runtime.New(cfg, registry, dirService, backend)

	logging.Info("Bootstrap", "directory service listening on %s", lis.Addr())
	runErr := host.RunServer(tree.Root())

	grpcServer.GracefulStop()
	select {
	case serveErr := <-serveErrCh:
		if serveErr != nil {
			logging.Warn("Bootstrap", "directory gRPC server exited: %v", serveErr)
		}
	default:
	}

	return runErr
}

// MigrateOptions configures run_migrate.
type MigrateOptions struct {
	ConfigPath string
	CLI        config.CLIOverrides
	Modules    []module.Module
}

// RunMigrate runs PreInit -> Migrate only: non-zero exit on any failure,
// and requires at least one database-bearing module.
func RunMigrate(opts MigrateOptions) error {
	cfg, err := config.Load(opts.ConfigPath, opts.CLI)
	if err != nil {
		return err
	}

	if cfg.Database == nil {
		hasModuleDB := false
		for _, mod := range cfg.Modules {
			if mod != nil && mod.Database != nil {
				hasModuleDB = true
				break
			}
		}
		if !hasModuleDB {
			return apperror.New(apperror.KindMigrationFailed, "no database configuration found")
		}
	}

	tree := cancel.New(context.Background())
	tree.HookSignals()

	registry := module.NewRegistry()
	if err := registerModules(registry, opts.Modules, cfg); err != nil {
		return err
	}

	host := runtime.New(cfg, registry, nil, nil)
	if err := host.RunMigrateOnly(tree.Root()); err != nil {
		return err
	}

	fmt.Println("[OK] Database migrations completed successfully")
	return nil
}

// OopOptions configures run_oop_with_options.
type OopOptions struct {
	ModuleName string
	ConfigPath string // overrides MODKIT_CONFIG_PATH if set
	CLI        config.CLIOverrides
	Modules    []module.Module
}

// RunOopWithOptions is the OoP-side boot: it loads local config, reads
// the rendered environment, merges the two, and runs the phase machine
// for in-process components only; it never itself spawns further OoP
// children.
func RunOopWithOptions(opts OopOptions) error {
	rendered, err := readRenderedConfig()
	if err != nil {
		return err
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}

	local, err := config.Load(configPath, opts.CLI)
	if err != nil {
		return err
	}

	effective := config.MergeChild(rendered, local, opts.ModuleName)
	cfg := applyEffective(local, opts.ModuleName, effective)

	tree := cancel.New(context.Background())
	tree.HookSignals()

	registry := module.NewRegistry()
	if err := registerModules(registry, opts.Modules, cfg); err != nil {
		return err
	}

	instanceID := uuid.New()
	dirEndpoint := os.Getenv(EnvDirectoryEndpoint)
	var conn *grpc.ClientConn
	if dirEndpoint != "" {
		conn, err = grpc.Dial(dirEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			logging.Warn("Bootstrap", "could not dial directory endpoint %s: %v", dirEndpoint, err)
		} else {
			client := directory.NewGRPCClient(conn)
			registerCtx, cancelRegister := context.WithTimeout(tree.Root(), 5*time.Second)
			if rerr := client.Register(registerCtx, opts.ModuleName, instanceID, nil); rerr != nil {
				logging.Warn("Bootstrap", "registering with directory failed: %v", rerr)
			}
			cancelRegister()

			hbCtx, cancelHB := tree.Child()
			defer cancelHB()
			go directory.RunHeartbeatLoop(hbCtx, client, opts.ModuleName, instanceID, time.Duration(config.DefaultHeartbeatSecs)*time.Second)
		}
	}

	host := runtime.New(cfg, registry, nil, nil)
	runErr := host.RunServer(tree.Root())

	if conn != nil {
		_ = conn.Close()
	}

	return runErr
}

// readRenderedConfig parses MODKIT_MODULE_CONFIG if set. An unset or
// empty variable means standalone mode: the local config is used
// entirely.
func readRenderedConfig() (*config.RenderedModuleConfig, error) {
	raw := os.Getenv(EnvModuleConfig)
	if raw == "" {
		return nil, nil
	}

	var rendered config.RenderedModuleConfig
	if err := json.Unmarshal([]byte(raw), &rendered); err != nil {
		return nil, apperror.Wrap(apperror.KindConfigLoad, "parsing "+EnvModuleConfig, err)
	}
	return &rendered, nil
}

// applyEffective folds a child's merged EffectiveModuleConfig back into
// an AppConfig shape, so the unmodified Module interface (which reads
// configuration through cfg.Modules[name] and cfg.Database, same as any
// in-process module) sees the merged result without needing its own
// parallel config type.
func applyEffective(local config.AppConfig, moduleName string, eff *config.EffectiveModuleConfig) config.AppConfig {
	cfg := local
	cfg.Tracing = eff.Tracing
	cfg.Logging = eff.Logging

	if cfg.Modules == nil {
		cfg.Modules = map[string]*config.ModuleConfig{}
	}
	mod, ok := cfg.Modules[moduleName]
	if !ok || mod == nil {
		mod = &config.ModuleConfig{}
		cfg.Modules[moduleName] = mod
	}
	mod.Config = eff.Config

	if eff.Database == nil {
		cfg.Database = nil
		mod.Database = nil
		return cfg
	}

	cfg.Database = eff.Database.Global
	mod.Database = eff.Database.Module
	return cfg
}

// registerModules registers every in-process module, then every
// out-of-process module declared in cfg.Modules (runtime.type = oop) as
// a registry metadata entry.
func registerModules(registry *module.Registry, inProcess []module.Module, cfg config.AppConfig) error {
	for _, mod := range inProcess {
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

	return nil
}
