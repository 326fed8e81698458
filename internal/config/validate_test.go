package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsRelativeHomeDir(t *testing.T) {
	errs := Validate(AppConfig{Server: ServerConfig{HomeDir: "relative/path"}})
	assert.True(t, errs.HasErrors())
}

func TestValidateRejectsOopModuleMissingExecutablePath(t *testing.T) {
	errs := Validate(AppConfig{
		Server: ServerConfig{HomeDir: "/abs/path"},
		Modules: map[string]*ModuleConfig{
			"worker": {Runtime: &RuntimeSpec{Type: RuntimeOutOfProcess}},
		},
	})
	assert.True(t, errs.HasErrors())
}

func TestValidateAcceptsOopModuleWithExecutablePath(t *testing.T) {
	errs := Validate(AppConfig{
		Server: ServerConfig{HomeDir: "/abs/path"},
		Modules: map[string]*ModuleConfig{
			"worker": {Runtime: &RuntimeSpec{
				Type:      RuntimeOutOfProcess,
				Execution: &ExecutionSpec{ExecutablePath: "/usr/bin/worker"},
			}},
		},
	})
	assert.False(t, errs.HasErrors())
}

func TestValidateIgnoresInProcessModuleWithoutExecution(t *testing.T) {
	errs := Validate(AppConfig{
		Server: ServerConfig{HomeDir: "/abs/path"},
		Modules: map[string]*ModuleConfig{
			"a": {Runtime: &RuntimeSpec{Type: RuntimeInProcess}},
		},
	})
	assert.False(t, errs.HasErrors())
}
