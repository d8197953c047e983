package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is fatal: the process must not start polling.
type ConfigurationError struct {
	Missing []string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
