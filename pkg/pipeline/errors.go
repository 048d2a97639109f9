package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCondition is reported when a plugin carries a condition that
	// cannot be invoked
	ErrInvalidCondition = errors.New("condition is not callable")

	// ErrMissingHandler is reported when a plugin has no handler
	ErrMissingHandler = errors.New("plugin has no handler")

	// ErrConditionEmpty fails a request whose plugin condition completed
	// without producing a decision
	ErrConditionEmpty = errors.New("pipeline: condition completed without a value")

	// ErrMissingTerminal fails a request handled without a terminal handler
	ErrMissingTerminal = errors.New("pipeline: no terminal handler")

	// ErrMissingRequest fails a nil request
	ErrMissingRequest = errors.New("pipeline: no request")
)

// ConfigError reports a plugin that cannot take part in a pipeline
type ConfigError struct {
	Index  int
	Plugin string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Plugin != "" {
		return fmt.Sprintf("pipeline: plugin %d (%s): %v", e.Index, e.Plugin, e.Err)
	}
	return fmt.Sprintf("pipeline: plugin %d: %v", e.Index, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
