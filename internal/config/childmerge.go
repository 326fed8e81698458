package config

import (
	"dario.cat/mergo"
)

// EffectiveModuleConfig is what an OoP module actually boots with, after
// ConfigMerger has reconciled the rendered document (if any) with the
// module's own local configuration.
type EffectiveModuleConfig struct {
	Config   interface{}
	Database *RenderedDatabase
	Logging  LoggingConfig
	Tracing  *TracingConfig
}

// MergeChild reconciles the two configuration sources an OoP module has
// at boot. rendered is nil in standalone mode (MODKIT_MODULE_CONFIG
// unset); local is the AppConfig the child loaded via the same layered
// loader the parent uses.
func MergeChild(rendered *RenderedModuleConfig, local AppConfig, moduleName string) *EffectiveModuleConfig {
	localMod := local.Modules[moduleName]

	return &EffectiveModuleConfig{
		Config:   mergeConfigSection(rendered, localMod),
		Database: mergeDatabaseSection(rendered, local.Database, localMod),
		Logging:  mergeLoggingSection(rendered, local.Logging, localMod),
		Tracing:  mergeTracingSection(rendered, local.Tracing),
	}
}

// mergeConfigSection: local wins outright if present and non-null;
// otherwise rendered (if any) is used. No deep merge: this subtree is
// module-specific and the local author expresses intent as a whole.
func mergeConfigSection(rendered *RenderedModuleConfig, localMod *ModuleConfig) interface{} {
	var localConfig interface{}
	if localMod != nil {
		localConfig = localMod.Config
	}

	if !ConfigIsNullOrAbsent(localConfig) {
		return localConfig
	}

	if rendered != nil {
		return rendered.Config
	}
	return nil
}

// mergeLoggingSection performs a key-by-key override: rendered keys are
// the base, local top-level logging sections replace whole subsystem
// entries, and a per-module logging subtree (modules.<name>.logging)
// takes final precedence over both, the natural place for a module
// author to pin its own subsystem without touching the global file.
func mergeLoggingSection(rendered *RenderedModuleConfig, localLogging LoggingConfig, localMod *ModuleConfig) LoggingConfig {
	result := LoggingConfig{}

	if rendered != nil {
		for k, v := range rendered.Logging {
			result[k] = v
		}
	}
	for k, v := range localLogging {
		result[k] = v
	}
	if localMod != nil {
		for k, v := range localMod.Logging {
			result[k] = v
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// mergeTracingSection: rendered wins if present, otherwise local.
func mergeTracingSection(rendered *RenderedModuleConfig, localTracing *TracingConfig) *TracingConfig {
	if rendered != nil && rendered.Tracing != nil {
		return rendered.Tracing
	}
	return localTracing
}

// mergeDatabaseSection implements the deep, field-by-field merge
// discipline: start from rendered {global, module}, overlay local
// database and local modules.<name>.database using recursive struct
// merge via mergo (non-object values replace, objects recurse). If
// neither side has any database configuration, returns nil: the
// db-options sentinel is None and db-gated phases are skipped.
func mergeDatabaseSection(rendered *RenderedModuleConfig, localGlobal *DatabaseConfig, localMod *ModuleConfig) *RenderedDatabase {
	var localModuleSpec *ModuleDatabaseSpec
	if localMod != nil {
		localModuleSpec = localMod.Database
	}

	var renderedGlobal *DatabaseConfig
	var renderedModuleSpec *ModuleDatabaseSpec
	if rendered != nil && rendered.Database != nil {
		renderedGlobal = rendered.Database.Global
		renderedModuleSpec = rendered.Database.Module
	}

	if renderedGlobal == nil && renderedModuleSpec == nil && localGlobal == nil && localModuleSpec == nil {
		return nil
	}

	global := mergeGlobalDatabase(renderedGlobal, localGlobal)
	module := mergeModuleDatabase(renderedModuleSpec, localModuleSpec)

	if global == nil && module == nil {
		return nil
	}
	return &RenderedDatabase{Global: global, Module: module}
}

func mergeGlobalDatabase(base, override *DatabaseConfig) *DatabaseConfig {
	if base == nil && override == nil {
		return nil
	}
	var result DatabaseConfig
	if base != nil {
		result = cloneDatabaseConfig(*base)
	}
	if override != nil {
		_ = mergo.Merge(&result, *override, mergo.WithOverride)
	}
	return &result
}

func mergeModuleDatabase(base, override *ModuleDatabaseSpec) *ModuleDatabaseSpec {
	if base == nil && override == nil {
		return nil
	}
	var result ModuleDatabaseSpec
	if base != nil {
		result = *base
		if base.Pool != nil {
			p := *base.Pool
			result.Pool = &p
		}
	}
	if override != nil {
		_ = mergo.Merge(&result, *override, mergo.WithOverride)
	}
	return &result
}

func cloneDatabaseConfig(in DatabaseConfig) DatabaseConfig {
	out := DatabaseConfig{AutoProvision: in.AutoProvision}
	if in.Servers != nil {
		out.Servers = make(map[string]*ServerSpec, len(in.Servers))
		for k, v := range in.Servers {
			out.Servers[k] = v
		}
	}
	return out
}
