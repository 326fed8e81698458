package config

// Render builds the RenderedModuleConfig for one out-of-process module:
// a complete standalone configuration the child can boot from without
// seeing the parent's config file. moduleName must key an entry in
// cfg.Modules with runtime.type = oop; callers are expected to have
// already filtered to OoP modules (see ModuleRegistry).
func Render(cfg AppConfig, moduleName string) *RenderedModuleConfig {
	mod := cfg.Modules[moduleName]
	if mod == nil {
		return &RenderedModuleConfig{Logging: projectLogging(cfg.Logging, moduleName), Tracing: cfg.Tracing}
	}

	return &RenderedModuleConfig{
		Database: renderDatabase(cfg.Database, mod.Database),
		Config:   mod.Config,
		Logging:  projectLogging(cfg.Logging, moduleName),
		Tracing:  cfg.Tracing,
	}
}

// renderDatabase produces database.global (the subset of global servers
// the module's own spec actually references, by name) and database.module
// (the module's spec, overlaid on top of any matching global server's
// defaults, field by field).
func renderDatabase(global *DatabaseConfig, moduleSpec *ModuleDatabaseSpec) *RenderedDatabase {
	if global == nil && moduleSpec == nil {
		return nil
	}

	rendered := &RenderedDatabase{}

	var referenced *ServerSpec
	if global != nil && moduleSpec != nil && moduleSpec.Server != "" {
		referenced = global.Servers[moduleSpec.Server]
		rendered.Global = &DatabaseConfig{
			AutoProvision: global.AutoProvision,
			Servers: map[string]*ServerSpec{
				moduleSpec.Server: referenced,
			},
		}
	}

	if moduleSpec != nil {
		rendered.Module = overlayModuleSpec(referenced, moduleSpec)
	}

	return rendered
}

// overlayModuleSpec builds the module's effective db spec by starting
// from the referenced global server's fields and letting any non-empty
// field on the module's own spec win, field by field.
func overlayModuleSpec(base *ServerSpec, moduleSpec *ModuleDatabaseSpec) *ModuleDatabaseSpec {
	result := &ModuleDatabaseSpec{Server: moduleSpec.Server}

	if base != nil {
		result.File = base.File
		result.DSN = base.DSN
		if base.Pool != nil {
			p := *base.Pool
			result.Pool = &p
		}
	}

	if moduleSpec.File != "" {
		result.File = moduleSpec.File
	}
	if moduleSpec.DSN != "" {
		result.DSN = moduleSpec.DSN
	}
	if moduleSpec.Pool != nil {
		if result.Pool == nil {
			result.Pool = &PoolSpec{}
		}
		overlayPool(result.Pool, moduleSpec.Pool)
	}

	return result
}

func overlayPool(dst, src *PoolSpec) {
	if src.MaxConns != 0 {
		dst.MaxConns = src.MaxConns
	}
	if src.MinConns != 0 {
		dst.MinConns = src.MinConns
	}
	if src.MaxIdleSecs != 0 {
		dst.MaxIdleSecs = src.MaxIdleSecs
	}
}

// projectLogging sends the entire logging map and lets the child-side
// merge pick what it needs, rather than trying to guess which keys a
// module is interested in.
func projectLogging(logging LoggingConfig, _ string) LoggingConfig {
	if logging == nil {
		return nil
	}
	out := make(LoggingConfig, len(logging))
	for k, v := range logging {
		out[k] = v
	}
	return out
}
