package config

import (
	"fmt"
)

// ConfigurationError carries enough context about a load-time failure
// (file, optional position, and a human message) for the CLI's
// stable stdout line to be paired with a detailed log line.
type ConfigurationError struct {
	FilePath string // path to the file that caused the error, if any
	Line     int    // 1-based line number, 0 if unknown
	Column   int    // 1-based column number, 0 if unknown
	Stage    string // "file", "env", "cli", or "validate"
	Message  string
}

func (ce ConfigurationError) Error() string {
	if ce.FilePath == "" {
		return fmt.Sprintf("[%s] %s", ce.Stage, ce.Message)
	}
	if ce.Line > 0 {
		return fmt.Sprintf("[%s] %s:%d:%d: %s", ce.Stage, ce.FilePath, ce.Line, ce.Column, ce.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", ce.Stage, ce.FilePath, ce.Message)
}

// ConfigurationErrorCollection aggregates the errors produced while
// validating an AppConfig (e.g. a relative server.home_dir, a malformed
// module name, an oop module missing its executable_path).
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError
}

func (cec ConfigurationErrorCollection) Error() string {
	switch len(cec.Errors) {
	case 0:
		return "no configuration errors"
	case 1:
		return cec.Errors[0].Error()
	default:
		return fmt.Sprintf("%d configuration errors, first: %s", len(cec.Errors), cec.Errors[0].Error())
	}
}

func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

func (cec *ConfigurationErrorCollection) Add(err ConfigurationError) {
	cec.Errors = append(cec.Errors, err)
}

// NewConfigurationErrorCollection returns an empty collection.
func NewConfigurationErrorCollection() *ConfigurationErrorCollection {
	return &ConfigurationErrorCollection{Errors: make([]ConfigurationError, 0)}
}
