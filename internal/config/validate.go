package config

import (
	"fmt"
	"path/filepath"
)

// Validate checks the invariants that cannot be expressed as Go struct
// shape alone: home_dir is absolute, every module name is well formed,
// every out-of-process module declares an executable path, and every
// declared runtime.type is recognized.
func Validate(cfg AppConfig) *ConfigurationErrorCollection {
	errs := NewConfigurationErrorCollection()

	if !filepath.IsAbs(cfg.Server.HomeDir) {
		errs.Add(ConfigurationError{
			Stage:   "validate",
			Message: fmt.Sprintf("server.home_dir must be an absolute path, got %q", cfg.Server.HomeDir),
		})
	}

	for name, mod := range cfg.Modules {
		if err := ValidateEntityName(name, "module"); err != nil {
			errs.Add(ConfigurationError{Stage: "validate", Message: FormatValidationError("module", name, err).Error()})
			continue
		}

		if mod == nil || mod.Runtime == nil {
			continue
		}

		if err := ValidateOneOf("runtime.type", string(mod.Runtime.Type), []string{string(RuntimeInProcess), string(RuntimeOutOfProcess)}); err != nil {
			errs.Add(ConfigurationError{Stage: "validate", Message: FormatValidationError("module", name, err).Error()})
			continue
		}

		if mod.Runtime.Type != RuntimeOutOfProcess {
			continue
		}
		if mod.Runtime.Execution == nil || mod.Runtime.Execution.ExecutablePath == "" {
			errs.Add(ConfigurationError{
				Stage:   "validate",
				Message: fmt.Sprintf("module %q declares runtime.type=oop but has no runtime.execution.executable_path", name),
			})
		}
	}

	return errs
}
