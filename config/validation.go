package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/wippyai/rime-bridge/errors"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is match any validation failure as a config error.
func (e ValidationErrors) Is(target error) bool {
	t, ok := target.(*errors.Error)
	return ok && t.Phase == errors.PhaseConfig && t.Kind == errors.KindInvalidInput
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Runtime.LocalCapacity < 16 {
		add("runtime.local_capacity", "must be at least 16, got %d", c.Runtime.LocalCapacity)
	}
	if c.Runtime.MaxThreads < 0 {
		add("runtime.max_threads", "must not be negative, got %d", c.Runtime.MaxThreads)
	}

	if c.Rime.SharedDataDir == "" {
		add("rime.shared_data_dir", "is required")
	}
	if c.Rime.UserDataDir == "" {
		add("rime.user_data_dir", "is required")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "unknown level %q", c.Log.Level)
	}
	switch c.Log.Encoding {
	case "", "console", "json":
	default:
		add("log.encoding", "must be console or json, got %q", c.Log.Encoding)
	}

	for i, p := range c.Plugins.Paths {
		if p == "" {
			add(fmt.Sprintf("plugins.paths[%d]", i), "is empty")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
