package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var errNoRules = errors.New("no usable rules configured")

// ConfigError is a malformed rule. It disables that rule only.
type ConfigError struct {
	Rule string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("config: %s", e.Err)
	}
	return fmt.Sprintf("config: rule %q: %s", e.Rule, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ScanError means the directory of a target could not be read. It is fatal
// for that target only.
type ScanError struct {
	Rule      string
	Directory string
	Err       error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan: rule %q: directory %s: %s", e.Rule, e.Directory, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// ExecutionError is a failed filesystem step while applying a plan.
type ExecutionError struct {
	Path string
	Op   string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// LockContentionError means another run holds the lock of a target.
type LockContentionError struct {
	Rule string
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("rule %q is locked by another run", e.Rule)
}
