package config

// RuntimeType distinguishes modules hosted in the parent process from
// modules spawned as separate OS binaries.
type RuntimeType string

const (
	RuntimeInProcess    RuntimeType = "inproc"
	RuntimeOutOfProcess RuntimeType = "oop"
)

// AppConfig is the effective, merged configuration of one ModKit process.
// It is produced once by the ConfigLoader and is read-only thereafter,
// shared by reference across the runtime, the renderer, and every
// in-process module.
type AppConfig struct {
	Server     ServerConfig             `yaml:"server" json:"server"`
	Database   *DatabaseConfig          `yaml:"database,omitempty" json:"database,omitempty"`
	Logging    LoggingConfig            `yaml:"logging,omitempty" json:"logging,omitempty"`
	Tracing    *TracingConfig           `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	ModulesDir string                   `yaml:"modules_dir,omitempty" json:"modules_dir,omitempty"`
	Modules    map[string]*ModuleConfig `yaml:"modules,omitempty" json:"modules,omitempty"`
}

// ServerConfig holds process-wide host settings.
type ServerConfig struct {
	HomeDir string `yaml:"home_dir" json:"home_dir"`
	Port    int    `yaml:"port,omitempty" json:"port,omitempty"`
}

// DatabaseConfig is the global database section: a named set of servers
// plus a flag controlling whether missing ones are provisioned on demand.
type DatabaseConfig struct {
	Servers       map[string]*ServerSpec `yaml:"servers,omitempty" json:"servers,omitempty"`
	AutoProvision bool                   `yaml:"auto_provision,omitempty" json:"auto_provision,omitempty"`
}

// ServerSpec describes one database connection target. Pool is a nested
// object on purpose: it is the field that per-module overrides typically
// touch in isolation (see ConfigMerger's field-by-field discipline).
type ServerSpec struct {
	File string    `yaml:"file,omitempty" json:"file,omitempty"`
	DSN  string    `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Pool *PoolSpec `yaml:"pool,omitempty" json:"pool,omitempty"`
}

// PoolSpec carries connection-pool tuning knobs for the external pool
// factory to read from; the host itself only merges them.
type PoolSpec struct {
	MaxConns    int `yaml:"max_conns,omitempty" json:"max_conns,omitempty"`
	MinConns    int `yaml:"min_conns,omitempty" json:"min_conns,omitempty"`
	MaxIdleSecs int `yaml:"max_idle_secs,omitempty" json:"max_idle_secs,omitempty"`
}

// ModuleDatabaseSpec is a per-module database override: the module's own
// spec plus the name of the global server it builds on top of, if any.
type ModuleDatabaseSpec struct {
	Server string    `yaml:"server,omitempty" json:"server,omitempty"`
	File   string    `yaml:"file,omitempty" json:"file,omitempty"`
	DSN    string    `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Pool   *PoolSpec `yaml:"pool,omitempty" json:"pool,omitempty"`
}

// LoggingConfig is an unordered mapping from subsystem key
// (e.g. "default", "sqlx", or a module name) to that subsystem's
// logging Section. Subsystems are independent of each other, which is
// why the merge discipline for this section is key-by-key override
// rather than a deep field merge (see ConfigMerger).
type LoggingConfig map[string]*Section

// Section describes the logging behavior for one subsystem.
type Section struct {
	ConsoleLevel string    `yaml:"console_level,omitempty" json:"console_level,omitempty"`
	File         string    `yaml:"file,omitempty" json:"file,omitempty"`
	Rotation     *Rotation `yaml:"rotation,omitempty" json:"rotation,omitempty"`
}

// Rotation bounds a file sink's growth.
type Rotation struct {
	MaxSizeMB  int `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxBackups int `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
}

// TracingConfig is copied verbatim between parent and child; the host
// never inspects it beyond passing it on to the (external) telemetry
// hook point.
type TracingConfig struct {
	Enabled  bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Endpoint string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Sampling float64 `yaml:"sampling,omitempty" json:"sampling,omitempty"`
}

// ExecutionSpec is the subset of runtime.execution recognized for
// runtime.type = oop modules.
type ExecutionSpec struct {
	ExecutablePath string            `yaml:"executable_path,omitempty" json:"executable_path,omitempty"`
	Args           []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env            map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	WorkingDir     string            `yaml:"working_dir,omitempty" json:"working_dir,omitempty"`
}

// RuntimeSpec is modules.<name>.runtime.
type RuntimeSpec struct {
	Type      RuntimeType    `yaml:"type" json:"type"`
	Execution *ExecutionSpec `yaml:"execution,omitempty" json:"execution,omitempty"`
}

// ModuleConfig is the opaque-to-the-host subtree at modules.<name>. Only
// the four recognized sub-keys have fields; "config" stays an untyped
// value because its shape is module-specific and the host never interprets
// it (see ConfigMerger: "local value wins outright, no deep merge").
type ModuleConfig struct {
	// Config is arbitrary JSON/YAML (an object, scalar, or null); it is
	// never interpreted by the host, only carried and merged. It is
	// typed interface{} rather than json.RawMessage so the same value
	// decodes cleanly whether the source layer was YAML or JSON and
	// marshals cleanly to either on the way out (see render.go).
	Config   interface{}         `yaml:"config,omitempty" json:"config,omitempty"`
	Database *ModuleDatabaseSpec `yaml:"database,omitempty" json:"database,omitempty"`
	Runtime  *RuntimeSpec        `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	Logging  LoggingConfig       `yaml:"logging,omitempty" json:"logging,omitempty"`
}

// ConfigIsNullOrAbsent reports whether a module config subtree should be
// treated as absent under the ConfigMerger's "local config: null" edge
// case.
func ConfigIsNullOrAbsent(v interface{}) bool {
	return v == nil
}

// RenderedDatabase is RenderedModuleConfig.database.
type RenderedDatabase struct {
	Global *DatabaseConfig     `yaml:"global,omitempty" json:"global,omitempty"`
	Module *ModuleDatabaseSpec `yaml:"module,omitempty" json:"module,omitempty"`
}

// RenderedModuleConfig is the document a ConfigRenderer builds for one
// OoP module and a ConfigMerger consumes on the child side. It must be
// a complete standalone configuration for that module in the absence
// of any local file.
type RenderedModuleConfig struct {
	Database *RenderedDatabase `yaml:"database,omitempty" json:"database,omitempty"`
	Config   interface{}       `yaml:"config,omitempty" json:"config,omitempty"`
	Logging  LoggingConfig     `yaml:"logging,omitempty" json:"logging,omitempty"`
	Tracing  *TracingConfig    `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}
