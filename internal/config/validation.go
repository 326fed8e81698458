package config

import (
	"fmt"
	"strings"
)

// maxEntityNameLength bounds module and server names; anything longer is
// almost certainly a paste error, and directory keys stay readable.
const maxEntityNameLength = 100

// ValidationError carries the offending field and value alongside the
// message, so callers can report exactly which part of the configuration
// tree failed.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidateEntityName checks that a module or database-server name is
// non-empty, within length bounds, and free of whitespace. Names key
// maps throughout the configuration and become directory rows, so they
// must be stable identifiers, not prose.
func ValidateEntityName(name, entityType string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ValidationError{
			Field:   "name",
			Value:   name,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	if len(name) > maxEntityNameLength {
		return ValidationError{
			Field:   "name",
			Value:   name,
			Message: fmt.Sprintf("must not exceed %d characters", maxEntityNameLength),
		}
	}
	if strings.ContainsAny(name, " \t\n\r\v\f") {
		return ValidationError{
			Field:   "name",
			Value:   name,
			Message: "cannot contain whitespace",
		}
	}
	return nil
}

// ValidateOneOf checks that value is one of the allowed enumerants.
func ValidateOneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// FormatValidationError prefixes err with the entity it belongs to, so a
// collection of errors from different modules stays attributable.
func FormatValidationError(entityType, entityName string, err error) error {
	if err == nil {
		return nil
	}
	if entityName != "" {
		return fmt.Errorf("validation failed for %s '%s': %w", entityType, entityName, err)
	}
	return fmt.Errorf("validation failed for %s: %w", entityType, err)
}
