package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProjectsOnlyReferencedGlobalServer(t *testing.T) {
	cfg := AppConfig{
		Database: &DatabaseConfig{
			AutoProvision: true,
			Servers: map[string]*ServerSpec{
				"sqlite_main": {File: "main.db"},
				"unused":      {File: "unused.db"},
			},
		},
		Modules: map[string]*ModuleConfig{
			"a": {Runtime: &RuntimeSpec{Type: RuntimeInProcess}},
			"b": {
				Runtime:  &RuntimeSpec{Type: RuntimeOutOfProcess, Execution: &ExecutionSpec{ExecutablePath: "/bin/b"}},
				Database: &ModuleDatabaseSpec{Server: "sqlite_main"},
			},
		},
	}

	rendered := Render(cfg, "b")
	require.NotNil(t, rendered.Database)
	require.NotNil(t, rendered.Database.Global)

	_, hasMain := rendered.Database.Global.Servers["sqlite_main"]
	_, hasUnused := rendered.Database.Global.Servers["unused"]
	assert.True(t, hasMain)
	assert.False(t, hasUnused)
}

func TestRenderModuleDatabaseOverlaysGlobalDefaults(t *testing.T) {
	cfg := AppConfig{
		Database: &DatabaseConfig{
			Servers: map[string]*ServerSpec{
				"sqlite_main": {File: "master.db", Pool: &PoolSpec{MaxConns: 5}},
			},
		},
		Modules: map[string]*ModuleConfig{
			"m": {Database: &ModuleDatabaseSpec{Server: "sqlite_main"}},
		},
	}

	rendered := Render(cfg, "m")
	require.NotNil(t, rendered.Database.Module)
	assert.Equal(t, "master.db", rendered.Database.Module.File)
	assert.Equal(t, 5, rendered.Database.Module.Pool.MaxConns)
}

func TestRenderConfigCopiedVerbatim(t *testing.T) {
	cfg := AppConfig{
		Modules: map[string]*ModuleConfig{
			"m": {Config: map[string]interface{}{"setting": "value"}},
		},
	}

	rendered := Render(cfg, "m")
	asMap, ok := rendered.Config.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "value", asMap["setting"])
}

func TestRenderedConfigSurvivesJSONRoundTrip(t *testing.T) {
	rendered := &RenderedModuleConfig{
		Database: &RenderedDatabase{
			Global: &DatabaseConfig{AutoProvision: true, Servers: map[string]*ServerSpec{"main": {File: "m.db"}}},
			Module: &ModuleDatabaseSpec{Server: "main", File: "m.db", Pool: &PoolSpec{MaxConns: 5}},
		},
		Config:  map[string]interface{}{"setting": "value"},
		Logging: LoggingConfig{"default": {ConsoleLevel: "info"}},
		Tracing: &TracingConfig{Enabled: true, Endpoint: "otel:4317", Sampling: 0.5},
	}

	b, err := json.Marshal(rendered)
	require.NoError(t, err)

	var parsed RenderedModuleConfig
	require.NoError(t, json.Unmarshal(b, &parsed))
	assert.Equal(t, rendered, &parsed)
}

func TestRenderLoggingSendsFullMap(t *testing.T) {
	cfg := AppConfig{
		Logging: LoggingConfig{
			"default": {ConsoleLevel: "info"},
			"sqlx":    {ConsoleLevel: "warn"},
		},
		Modules: map[string]*ModuleConfig{"m": {}},
	}

	rendered := Render(cfg, "m")
	assert.Len(t, rendered.Logging, 2)
	assert.Equal(t, "warn", rendered.Logging["sqlx"].ConsoleLevel)
}
