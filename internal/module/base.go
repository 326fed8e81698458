package module

import (
	"context"

	"modkit/internal/config"
)

// Base gives concrete modules no-op defaults for every lifecycle hook, so
// a module embeds Base and overrides only the phases named in its own
// CapabilitySet. Most modules only ever override Init/Start/Stop.
type Base struct {
	name   string
	deps   []string
	capSet CapabilitySet
}

// NewBase constructs a Base with the given name, dependencies, and
// capability set.
func NewBase(name string, deps []string, caps CapabilitySet) Base {
	return Base{name: name, deps: deps, capSet: caps}
}

func (b Base) Name() string                { return b.name }
func (b Base) Dependencies() []string      { return b.deps }
func (b Base) Capabilities() CapabilitySet { return b.capSet }

func (b Base) Migrate(ctx context.Context, cfg config.AppConfig) error { return nil }
func (b Base) Init(ctx context.Context, cfg config.AppConfig) error    { return nil }
func (b Base) Start(ctx context.Context, cfg config.AppConfig) error   { return nil }
func (b Base) Run(ctx context.Context) error                           { return nil }
func (b Base) Stop(ctx context.Context) error                          { return nil }
