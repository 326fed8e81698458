package oop

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"modkit/internal/apperror"
	"modkit/internal/config"
	"modkit/pkg/logging"

	"github.com/google/uuid"
)

const (
	envModuleConfig      = "MODKIT_MODULE_CONFIG"
	envDirectoryEndpoint = "MODKIT_DIRECTORY_ENDPOINT"
)

// SpawnConfig is everything needed to launch one OoP module.
type SpawnConfig struct {
	ModuleName        string
	ExecutablePath    string
	Args              []string
	Env               map[string]string
	WorkingDir        string
	RenderedConfig    *config.RenderedModuleConfig
	DirectoryEndpoint string
}

// Backend is the interface HostRuntime's Start phase uses to spawn OoP
// children. LocalProcessBackend is the only implementation; remote
// supervision and cross-host scheduling are out of scope.
type Backend interface {
	Spawn(ctx context.Context, spawn SpawnConfig) (*Instance, error)
	Instances() []*Instance
	Shutdown(graceful time.Duration)
}

// LocalProcessBackend spawns children with os/exec and supervises them on
// a per-instance child token derived from the root cancellation tree.
type LocalProcessBackend struct {
	mu        sync.Mutex
	instances []*Instance
	wg        sync.WaitGroup
}

// NewLocalProcessBackend returns an empty backend.
func NewLocalProcessBackend() *LocalProcessBackend {
	return &LocalProcessBackend{}
}

// Spawn launches spawn.ExecutablePath as a child process with
// MODKIT_MODULE_CONFIG and MODKIT_DIRECTORY_ENDPOINT injected, plus the
// Env overlay, then starts a supervisor goroutine bound to ctx: on ctx
// cancellation the child is sent SIGTERM, given
// config.DefaultSpawnGraceSecs to exit, then killed.
func (b *LocalProcessBackend) Spawn(ctx context.Context, spawn SpawnConfig) (*Instance, error) {
	absPath, err := filepath.Abs(spawn.ExecutablePath)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindSpawnFailed, fmt.Sprintf("resolving executable path for %s", spawn.ModuleName), err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindSpawnFailed, fmt.Sprintf("executable %s does not exist", absPath), err)
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return nil, apperror.New(apperror.KindSpawnFailed, fmt.Sprintf("%s is not an executable file", absPath))
	}

	renderedJSON, err := json.Marshal(spawn.RenderedConfig)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindSpawnFailed, fmt.Sprintf("serializing rendered config for %s", spawn.ModuleName), err)
	}

	cmd := exec.Command(absPath, spawn.Args...)
	cmd.Dir = spawn.WorkingDir
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	env := os.Environ()
	env = append(env, envModuleConfig+"="+string(renderedJSON))
	env = append(env, envDirectoryEndpoint+"="+spawn.DirectoryEndpoint)
	for k, v := range spawn.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		return nil, apperror.Wrap(apperror.KindSpawnFailed, fmt.Sprintf("starting %s", spawn.ModuleName), err)
	}

	instance := &Instance{
		ModuleName: spawn.ModuleName,
		InstanceID: uuid.New(),
		cmd:        cmd,
	}

	b.mu.Lock()
	b.instances = append(b.instances, instance)
	b.mu.Unlock()

	b.wg.Add(1)
	go b.supervise(ctx, instance)

	logging.Audit(logging.AuditEvent{Action: "spawn", Outcome: "success", Target: spawn.ModuleName})
	return instance, nil
}

// supervise waits on either the child's natural exit or ctx cancellation,
// whichever comes first. On cancellation it sends SIGTERM, waits
// config.DefaultSpawnGraceSecs, then force-kills.
func (b *LocalProcessBackend) supervise(ctx context.Context, instance *Instance) {
	defer b.wg.Done()

	done := make(chan error, 1)
	go func() {
		done <- instance.cmd.Wait()
	}()

	select {
	case err := <-done:
		instance.recordExit(err)
		if err != nil {
			logging.Warn("OopBackend", "module %s (pid %d) exited: %v", instance.ModuleName, instance.PID(), err)
		} else {
			logging.Info("OopBackend", "module %s (pid %d) exited cleanly", instance.ModuleName, instance.PID())
		}
		// Single-shot supervisor: no restart policy regardless of exit
		// code or cause.

	case <-ctx.Done():
		logging.Info("OopBackend", "cancelling module %s (pid %d)", instance.ModuleName, instance.PID())
		_ = instance.cmd.Process.Signal(syscall.SIGTERM)

		select {
		case err := <-done:
			instance.recordExit(err)
		case <-time.After(time.Duration(config.DefaultSpawnGraceSecs) * time.Second):
			logging.Warn("OopBackend", "module %s (pid %d) did not exit within grace period, killing", instance.ModuleName, instance.PID())
			_ = instance.cmd.Process.Kill()
			instance.recordExit(<-done)
		}
	}
}

// Instances returns a snapshot of all instances this backend has spawned.
func (b *LocalProcessBackend) Instances() []*Instance {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Instance, len(b.instances))
	copy(out, b.instances)
	return out
}

// Shutdown blocks until every supervisor goroutine has observed exit or
// cancellation and returned. Callers cancel the backend's child token(s)
// before calling Shutdown; graceful is accepted for interface symmetry
// with the per-instance grace period already enforced by supervise.
func (b *LocalProcessBackend) Shutdown(graceful time.Duration) {
	b.wg.Wait()
}
