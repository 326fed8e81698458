// Package module defines the Module contract and the registry that orders
// modules for HostRuntime's phase state machine.
package module

import (
	"context"

	"modkit/internal/config"
)

// RuntimeKind distinguishes modules hosted in the parent process from
// modules spawned as separate binaries.
type RuntimeKind int

const (
	InProcess RuntimeKind = iota
	OutOfProcess
)

func (k RuntimeKind) String() string {
	if k == OutOfProcess {
		return "OutOfProcess"
	}
	return "InProcess"
}

// Capability is one lifecycle phase a module can opt into.
type Capability int

const (
	CapabilityMigrate Capability = iota
	CapabilityInit
	CapabilityStart
	CapabilityRun
	CapabilityStop
)

// CapabilitySet is the set of phases a module participates in.
type CapabilitySet map[Capability]bool

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// NewCapabilitySet builds a CapabilitySet from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

// Module is implemented by every in-process component hosted by
// HostRuntime. A module only needs to implement the phases it declares
// in its CapabilitySet; HostRuntime never calls a hook the module didn't
// opt into.
type Module interface {
	// Name is the module's unique identifier within the registry.
	Name() string

	// Dependencies lists the names of modules that must complete a given
	// phase before this module starts that same phase.
	Dependencies() []string

	// Capabilities reports which phases this module participates in.
	Capabilities() CapabilitySet

	// Migrate runs pending schema migrations. Must be idempotent.
	Migrate(ctx context.Context, cfg config.AppConfig) error

	// Init constructs the module's own resources. Must not bind external
	// sockets (that happens in Start).
	Init(ctx context.Context, cfg config.AppConfig) error

	// Start binds sockets and starts servers.
	Start(ctx context.Context, cfg config.AppConfig) error

	// Run is the module's steady-state background task. It must return
	// promptly once ctx is cancelled.
	Run(ctx context.Context) error

	// Stop releases resources acquired in Init/Start. It is called in
	// reverse registry order during Stopping and must complete within
	// the host's grace period.
	Stop(ctx context.Context) error
}
