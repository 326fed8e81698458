// Package examplemodule ships a minimal in-process module that exists
// only to drive HostRuntime's phase machine and the OoP pipeline end to
// end in tests and manual runs; a host with zero modules cannot be
// exercised. It is a filesystem-backed key/value store scoped under
// server.home_dir, using pathguard to enforce base-dir containment.
package examplemodule

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"modkit/internal/apperror"
	"modkit/internal/config"
	"modkit/internal/module"
	"modkit/internal/pathguard"
)

// Settings is the shape of this module's modules.<name>.config subtree.
type Settings struct {
	// SubDir names the directory under server.home_dir this instance's
	// key/value files live in, e.g. "kv-store". Defaults to the module
	// name if empty.
	SubDir string `json:"sub_dir,omitempty"`
}

// Store is an in-process module that persists string values as one file
// per key under <home_dir>/<sub_dir>, guarded against path traversal.
type Store struct {
	module.Base

	mu    sync.RWMutex
	guard *pathguard.Guard
}

// New returns a Store module registered under name with no dependencies,
// participating in Init, Start, and Stop.
func New(name string) *Store {
	caps := module.NewCapabilitySet(module.CapabilityInit, module.CapabilityStart, module.CapabilityStop)
	return &Store{Base: module.NewBase(name, nil, caps)}
}

// Init reads this module's config subtree, resolves its scoped directory
// under server.home_dir, and constructs a pathguard.Guard rooted there.
// Init must not bind external sockets; only Start does that work,
// though this module has nothing to bind.
func (s *Store) Init(ctx context.Context, cfg config.AppConfig) error {
	settings := parseSettings(cfg.Modules[s.Name()])

	subDir := settings.SubDir
	if subDir == "" {
		subDir = s.Name()
	}

	dir := filepath.Join(cfg.Server.HomeDir, subDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperror.Wrap(apperror.KindInitFailed, fmt.Sprintf("creating store directory %s", dir), err)
	}

	guard, err := pathguard.New(dir)
	if err != nil {
		return apperror.Wrap(apperror.KindInitFailed, "constructing path guard", err)
	}

	s.mu.Lock()
	s.guard = guard
	s.mu.Unlock()
	return nil
}

// Put writes value to the file named key under the guarded directory.
func (s *Store) Put(key, value string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return apperror.Wrap(apperror.KindInternal, fmt.Sprintf("writing key %q", key), err)
	}
	return nil
}

// Get reads the value stored at key.
func (s *Store) Get(key string) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, fmt.Sprintf("reading key %q", key), err)
	}
	return string(data), nil
}

func (s *Store) resolve(key string) (string, error) {
	s.mu.RLock()
	guard := s.guard
	s.mu.RUnlock()

	if guard == nil {
		return "", apperror.New(apperror.KindInternal, "store not initialized")
	}
	return guard.Resolve(key)
}

func parseSettings(mc *config.ModuleConfig) Settings {
	var settings Settings
	if mc == nil || mc.Config == nil {
		return settings
	}

	b, err := json.Marshal(mc.Config)
	if err != nil {
		return settings
	}
	_ = json.Unmarshal(b, &settings)
	return settings
}
