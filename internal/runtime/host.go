// Package runtime implements HostRuntime, the phase state machine that
// drives every registered module through PreInit, Migrate, Init, Start,
// Running, and Stopping.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"modkit/internal/apperror"
	"modkit/internal/config"
	"modkit/internal/directory"
	"modkit/internal/module"
	"modkit/internal/oop"
	"modkit/pkg/logging"
)

// Phase is one step of the lifecycle state machine.
type Phase int

const (
	PhaseConstructed Phase = iota
	PhasePreInit
	PhaseMigrate
	PhaseInit
	PhaseStart
	PhaseRunning
	PhaseStopping
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhasePreInit:
		return "PreInit"
	case PhaseMigrate:
		return "Migrate"
	case PhaseInit:
		return "Init"
	case PhaseStart:
		return "Start"
	case PhaseRunning:
		return "Running"
	case PhaseStopping:
		return "Stopping"
	case PhaseTerminated:
		return "Terminated"
	default:
		return "Constructed"
	}
}

// HostRuntime owns the phase progression over a Registry for one process.
type HostRuntime struct {
	cfg       config.AppConfig
	registry  *module.Registry
	directory *directory.Service
	backend   oop.Backend

	phase           Phase
	progress        map[string]module.Capability // furthest capability each in-process module completed
	runCancel       map[string]context.CancelFunc
	runWG           sync.WaitGroup
	stopGrace       time.Duration
	monitorInterval time.Duration
	spawnCancel     map[string]context.CancelFunc
}

// New constructs a HostRuntime. dirSvc and backend may be nil for a
// process that hosts no OoP modules.
func New(cfg config.AppConfig, registry *module.Registry, dirSvc *directory.Service, backend oop.Backend) *HostRuntime {
	return &HostRuntime{
		cfg:             cfg,
		registry:        registry,
		directory:       dirSvc,
		backend:         backend,
		phase:           PhaseConstructed,
		progress:        make(map[string]module.Capability),
		runCancel:       make(map[string]context.CancelFunc),
		spawnCancel:     make(map[string]context.CancelFunc),
		stopGrace:       time.Duration(config.DefaultStopGraceSecs) * time.Second,
		monitorInterval: time.Duration(config.DefaultHeartbeatSecs) * time.Second,
	}
}

// Phase returns the runtime's current phase.
func (h *HostRuntime) Phase() Phase { return h.phase }

// RunServer executes the full lifecycle: PreInit, Migrate, Init, Start,
// Running (blocking on ctx), then Stopping. It returns the first fatal
// error encountered, if any, after Stopping has completed.
func (h *HostRuntime) RunServer(ctx context.Context) error {
	if err := h.preInit(ctx); err != nil {
		h.stop(context.Background())
		return err
	}
	if err := h.runPhase(ctx, PhaseMigrate, module.CapabilityMigrate); err != nil {
		h.stop(context.Background())
		return err
	}
	if err := h.runPhase(ctx, PhaseInit, module.CapabilityInit); err != nil {
		h.stop(context.Background())
		return err
	}
	if err := h.runPhase(ctx, PhaseStart, module.CapabilityStart); err != nil {
		h.stop(context.Background())
		return err
	}
	if err := h.spawnOopModules(ctx); err != nil {
		h.stop(context.Background())
		return err
	}

	h.startRunTasks(ctx)
	h.startDirectoryMonitor(ctx)

	h.phase = PhaseRunning
	logging.Info("HostRuntime", "entered Running phase")
	<-ctx.Done()

	h.stop(context.Background())
	return nil
}

// RunMigrateOnly executes PreInit then Migrate and returns, without ever
// reaching Start. It is the `migrate` entrypoint's engine.
func (h *HostRuntime) RunMigrateOnly(ctx context.Context) error {
	if err := h.preInit(ctx); err != nil {
		return err
	}
	return h.runPhase(ctx, PhaseMigrate, module.CapabilityMigrate)
}

func (h *HostRuntime) preInit(ctx context.Context) error {
	h.phase = PhasePreInit
	logging.Info("HostRuntime", "entered PreInit phase")
	// Wiring internal services (db manager, client hub, directory client)
	// happens at construction time via New's parameters in this design;
	// PreInit exists as an explicit phase boundary for ordering guarantees
	// and future internal-service wiring.
	return nil
}

// runPhase invokes the given capability's hook on every module that
// declares it, in registry order. A failure is fatal for the phase.
func (h *HostRuntime) runPhase(ctx context.Context, phase Phase, cap module.Capability) error {
	h.phase = phase
	logging.Info("HostRuntime", "entered %s phase", phase)

	records, err := h.registry.Ordered()
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.Module == nil || !rec.Capabilities.Has(cap) {
			continue
		}

		var hookErr error
		switch cap {
		case module.CapabilityMigrate:
			hookErr = rec.Module.Migrate(ctx, h.cfg)
		case module.CapabilityInit:
			hookErr = rec.Module.Init(ctx, h.cfg)
		case module.CapabilityStart:
			hookErr = rec.Module.Start(ctx, h.cfg)
		}

		if hookErr != nil {
			kind := apperror.KindInitFailed
			switch cap {
			case module.CapabilityMigrate:
				kind = apperror.KindMigrationFailed
			case module.CapabilityStart:
				kind = apperror.KindStartFailed
			}
			return apperror.Wrap(kind, fmt.Sprintf("module %q failed %s phase", rec.Name, phase), hookErr)
		}

		h.progress[rec.Name] = cap
	}

	return nil
}

// spawnOopModules runs only after the in-process Start phase completes,
// so the directory gRPC endpoint is already bound by the time the first
// child tries to register.
func (h *HostRuntime) spawnOopModules(ctx context.Context) error {
	if h.backend == nil {
		return nil
	}

	records, err := h.registry.Ordered()
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.RuntimeKind != module.OutOfProcess {
			continue
		}

		modCfg := h.cfg.Modules[rec.Name]
		if modCfg == nil || modCfg.Runtime == nil || modCfg.Runtime.Execution == nil {
			return apperror.New(apperror.KindSpawnFailed, fmt.Sprintf("module %q has no runtime.execution to spawn from", rec.Name))
		}

		rendered := config.Render(h.cfg, rec.Name)

		childCtx, cancel := context.WithCancel(ctx)
		h.spawnCancel[rec.Name] = cancel

		_, err := h.backend.Spawn(childCtx, oop.SpawnConfig{
			ModuleName:        rec.Name,
			ExecutablePath:    modCfg.Runtime.Execution.ExecutablePath,
			Args:              modCfg.Runtime.Execution.Args,
			Env:               modCfg.Runtime.Execution.Env,
			WorkingDir:        modCfg.Runtime.Execution.WorkingDir,
			RenderedConfig:    rendered,
			DirectoryEndpoint: directoryEndpointFor(h.cfg),
		})
		if err != nil {
			cancel()
			return err
		}
	}

	return nil
}

func directoryEndpointFor(cfg config.AppConfig) string {
	return fmt.Sprintf("localhost:%d", cfg.Server.Port)
}

// startRunTasks launches every in-process module's Run hook as a
// background task on its own child token, derived from ctx.
func (h *HostRuntime) startRunTasks(ctx context.Context) {
	records, err := h.registry.Ordered()
	if err != nil {
		return
	}

	for _, rec := range records {
		if rec.Module == nil || !rec.Capabilities.Has(module.CapabilityRun) {
			continue
		}

		runCtx, cancel := context.WithCancel(ctx)
		h.runCancel[rec.Name] = cancel

		h.runWG.Add(1)
		go func(rec *module.Record, runCtx context.Context) {
			defer h.runWG.Done()
			if err := rec.Module.Run(runCtx); err != nil && runCtx.Err() == nil {
				logging.Error("HostRuntime", err, "module %q Run task exited with error", rec.Name)
			}
		}(rec, runCtx)
	}
}

// startDirectoryMonitor launches the background task that evicts stale
// directory rows and mirrors each module's directory liveness onto the
// backend's per-instance heartbeat bookkeeping. The join between a
// directory row and an Instance is the module name: the child registers
// under its own instance ID, which the parent never sees.
func (h *HostRuntime) startDirectoryMonitor(ctx context.Context) {
	if h.directory == nil || h.backend == nil {
		return
	}

	monCtx, cancel := context.WithCancel(ctx)
	h.runCancel["directory-monitor"] = cancel

	h.runWG.Add(1)
	go func() {
		defer h.runWG.Done()
		ticker := time.NewTicker(h.monitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-monCtx.Done():
				return
			case now := <-ticker.C:
				if removed := h.directory.SweepStale(); removed > 0 {
					logging.Warn("HostRuntime", "evicted %d stale directory instance(s)", removed)
				}

				live := make(map[string]bool)
				for _, row := range h.directory.Live() {
					if !row.Stale {
						live[row.ModuleName] = true
					}
				}
				for _, inst := range h.backend.Instances() {
					ok := live[inst.ModuleName]
					if inst.LastHeartbeatOK() && !ok {
						logging.Warn("HostRuntime", "module %s stopped heartbeating", inst.ModuleName)
					}
					inst.RecordHeartbeat(ok, now)
				}
			}
		}
	}()
}

// stop runs the Stopping phase: cancel run tasks and the OoP backend,
// wait for background tasks within the grace period, then invoke Stop
// hooks in reverse registry order for every module that declares the
// Stop capability and completed at least Init.
func (h *HostRuntime) stop(ctx context.Context) {
	h.phase = PhaseStopping
	logging.Info("HostRuntime", "entered Stopping phase")

	for _, cancel := range h.runCancel {
		cancel()
	}
	for _, cancel := range h.spawnCancel {
		cancel()
	}

	waitDone := make(chan struct{})
	go func() {
		h.runWG.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(h.stopGrace):
		logging.Warn("HostRuntime", "background tasks did not exit within %s grace period", h.stopGrace)
	}

	if h.backend != nil {
		h.backend.Shutdown(h.stopGrace)
	}

	records, err := h.registry.Ordered()
	if err != nil {
		logging.Error("HostRuntime", err, "could not order registry for shutdown, stopping in registration order")
		records = nil
	}

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.Module == nil || !rec.Capabilities.Has(module.CapabilityStop) {
			continue
		}
		furthest, started := h.progress[rec.Name]
		if !started || furthest < module.CapabilityInit {
			continue
		}

		stopCtx, cancel := context.WithTimeout(ctx, h.stopGrace)
		if err := rec.Module.Stop(stopCtx); err != nil {
			logging.Error("HostRuntime", err, "module %q Stop hook failed", rec.Name)
		}
		cancel()
	}

	h.phase = PhaseTerminated
	logging.Info("HostRuntime", "entered Terminated phase")
}
