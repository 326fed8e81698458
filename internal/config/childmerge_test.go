package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeChildStandaloneUsesLocalEntirely(t *testing.T) {
	local := AppConfig{
		Modules: map[string]*ModuleConfig{
			"m": {Config: map[string]interface{}{"setting": "local"}},
		},
	}

	effective := MergeChild(nil, local, "m")

	asMap := effective.Config.(map[string]interface{})
	assert.Equal(t, "local", asMap["setting"])
	assert.Nil(t, effective.Database)
}

func TestMergeChildLocalOverridesRenderedPoolPreservesFile(t *testing.T) {
	rendered := &RenderedModuleConfig{
		Database: &RenderedDatabase{
			Module: &ModuleDatabaseSpec{Server: "sqlite_main", File: "master.db", Pool: &PoolSpec{MaxConns: 5}},
		},
	}
	local := AppConfig{
		Modules: map[string]*ModuleConfig{
			"m": {Database: &ModuleDatabaseSpec{Pool: &PoolSpec{MaxConns: 10}}},
		},
	}

	effective := MergeChild(rendered, local, "m")

	require.NotNil(t, effective.Database)
	require.NotNil(t, effective.Database.Module)
	assert.Equal(t, "master.db", effective.Database.Module.File)
	assert.Equal(t, 10, effective.Database.Module.Pool.MaxConns)
}

func TestMergeChildLocalNullConfigFallsBackToRendered(t *testing.T) {
	rendered := &RenderedModuleConfig{Config: map[string]interface{}{"setting": "rendered"}}
	local := AppConfig{
		Modules: map[string]*ModuleConfig{"m": {Config: nil}},
	}

	effective := MergeChild(rendered, local, "m")
	asMap := effective.Config.(map[string]interface{})
	assert.Equal(t, "rendered", asMap["setting"])
}

func TestMergeChildLocalNonNullConfigWinsOutright(t *testing.T) {
	rendered := &RenderedModuleConfig{Config: map[string]interface{}{"setting": "rendered", "other": "x"}}
	local := AppConfig{
		Modules: map[string]*ModuleConfig{"m": {Config: map[string]interface{}{"setting": "local"}}},
	}

	effective := MergeChild(rendered, local, "m")
	asMap := effective.Config.(map[string]interface{})
	assert.Equal(t, "local", asMap["setting"])
	_, leaked := asMap["other"]
	assert.False(t, leaked, "no rendered fields should leak into a local replacement")
}

func TestMergeChildLoggingUnionsKeysLocalWinsOverlap(t *testing.T) {
	rendered := &RenderedModuleConfig{
		Logging: LoggingConfig{
			"default": {ConsoleLevel: "info"},
			"sqlx":    {ConsoleLevel: "warn"},
		},
	}
	local := AppConfig{
		Logging: LoggingConfig{"default": {ConsoleLevel: "debug"}},
	}

	effective := MergeChild(rendered, local, "m")
	assert.Equal(t, "debug", effective.Logging["default"].ConsoleLevel)
	assert.Equal(t, "warn", effective.Logging["sqlx"].ConsoleLevel)
}

func TestMergeChildNoDatabaseAnywhereYieldsNilSentinel(t *testing.T) {
	effective := MergeChild(nil, AppConfig{}, "m")
	assert.Nil(t, effective.Database)
}

func TestMergeChildTracingRenderedWinsOverLocal(t *testing.T) {
	rendered := &RenderedModuleConfig{Tracing: &TracingConfig{Enabled: true, Endpoint: "rendered:4317"}}
	local := AppConfig{Tracing: &TracingConfig{Enabled: true, Endpoint: "local:4317"}}

	effective := MergeChild(rendered, local, "m")
	assert.Equal(t, "rendered:4317", effective.Tracing.Endpoint)
}

func TestMergeChildTracingFallsBackToLocalWhenRenderedAbsent(t *testing.T) {
	local := AppConfig{Tracing: &TracingConfig{Endpoint: "local:4317"}}

	effective := MergeChild(nil, local, "m")
	assert.Equal(t, "local:4317", effective.Tracing.Endpoint)
}
