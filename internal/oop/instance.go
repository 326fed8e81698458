// Package oop implements the LocalProcessBackend that spawns and
// supervises out-of-process modules as child processes.
package oop

import (
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Instance is a live OoP child, owned exclusively by the Backend that
// spawned it.
type Instance struct {
	ModuleName string
	InstanceID uuid.UUID

	cmd *exec.Cmd

	mu              sync.Mutex
	lastHeartbeatOK bool
	lastHeartbeatAt time.Time
	exited          bool
	exitErr         error
}

// PID returns the child process's OS PID, or 0 if it never started.
func (i *Instance) PID() int {
	if i.cmd == nil || i.cmd.Process == nil {
		return 0
	}
	return i.cmd.Process.Pid
}

// RecordHeartbeat updates the instance's liveness bookkeeping after a
// heartbeat attempt.
func (i *Instance) RecordHeartbeat(ok bool, at time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastHeartbeatOK = ok
	i.lastHeartbeatAt = at
}

// LastHeartbeatOK reports whether the most recent heartbeat succeeded.
func (i *Instance) LastHeartbeatOK() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastHeartbeatOK
}

func (i *Instance) recordExit(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.exited = true
	i.exitErr = err
}

// Exited reports whether the child process has terminated and, if so,
// the error (if any) os/exec reported.
func (i *Instance) Exited() (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.exited, i.exitErr
}
