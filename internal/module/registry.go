package module

import (
	"fmt"
	"sort"

	"modkit/internal/apperror"
)

// Record is one entry in the registry. InProcess modules carry a live
// Module implementation; OutOfProcess modules carry only the metadata
// HostRuntime needs to order phases around; their actual spawn
// configuration is derived from AppConfig.Modules[name] by HostRuntime
// after Start completes and handed to the OopBackend.
type Record struct {
	Name         string
	RuntimeKind  RuntimeKind
	Dependencies []string
	Capabilities CapabilitySet
	Module       Module // nil for OutOfProcess records
}

// Registry holds the discovered set of modules and produces the stable,
// dependency-respecting order HostRuntime walks through each phase.
type Registry struct {
	records map[string]*Record
	order   []string // cached topological order, computed by Ordered()
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Register adds an in-process module. The module's own Name/Dependencies/
// Capabilities populate the Record.
func (r *Registry) Register(mod Module) error {
	name := mod.Name()
	if _, exists := r.records[name]; exists {
		return apperror.New(apperror.KindModuleDiscovery, fmt.Sprintf("module %q registered more than once", name))
	}
	r.records[name] = &Record{
		Name:         name,
		RuntimeKind:  InProcess,
		Dependencies: mod.Dependencies(),
		Capabilities: mod.Capabilities(),
		Module:       mod,
	}
	r.order = nil
	return nil
}

// RegisterOutOfProcess adds an OoP module by metadata alone; its
// SpawnConfig is derived later from AppConfig by HostRuntime.
func (r *Registry) RegisterOutOfProcess(name string, deps []string, caps CapabilitySet) error {
	if _, exists := r.records[name]; exists {
		return apperror.New(apperror.KindModuleDiscovery, fmt.Sprintf("module %q registered more than once", name))
	}
	r.records[name] = &Record{
		Name:         name,
		RuntimeKind:  OutOfProcess,
		Dependencies: deps,
		Capabilities: caps,
	}
	r.order = nil
	return nil
}

// Get returns the record for name, if any.
func (r *Registry) Get(name string) (*Record, bool) {
	rec, ok := r.records[name]
	return rec, ok
}

// Ordered returns every registered record in a stable, dependency-
// respecting order: a topological sort over Dependencies, ties broken by
// module name ascending. A cycle is a fatal, typed error.
func (r *Registry) Ordered() ([]*Record, error) {
	if r.order == nil {
		order, err := topoSort(r.records)
		if err != nil {
			return nil, err
		}
		r.order = order
	}

	out := make([]*Record, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.records[name])
	}
	return out, nil
}

// topoSort implements Kahn's algorithm with a name-ordered ready queue so
// the result is deterministic for a given registration set.
func topoSort(records map[string]*Record) ([]string, error) {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	inDegree := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))

	for _, name := range names {
		rec := records[name]
		for _, dep := range rec.Dependencies {
			if _, ok := records[dep]; !ok {
				return nil, apperror.New(apperror.KindModuleDiscovery,
					fmt.Sprintf("module %q depends on unregistered module %q", name, dep))
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	ready := make([]string, 0, len(names))
	for _, name := range names {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var result []string
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		result = append(result, next)

		deps := dependents[next]
		sort.Strings(deps)
		for _, dependent := range deps {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(result) != len(names) {
		var stuck []string
		for _, name := range names {
			if inDegree[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, apperror.New(apperror.KindDependencyCycle,
			fmt.Sprintf("dependency cycle detected among modules: %v", stuck))
	}

	return result, nil
}
