package common

import "fmt"

// ConfigError reports a startup resource that is missing, malformed, or inconsistent with the
// rest of the loaded state. It is fatal: the process must not serve with partial resources.
type ConfigError struct {
	Resource string // e.g. "scaler", "model", "region table"
	Path     string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration error: %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("configuration error: %s %s: %v", e.Resource, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a ConfigError for resource at path.
func NewConfigError(resource, path string, err error) error {
	return &ConfigError{Resource: resource, Path: path, Err: err}
}
