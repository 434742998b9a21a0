package domain

import (
	"time"

	"github.com/pkg/errors"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusUnchanged Status = "unchanged"
	StatusPlanned   Status = "planned"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

const (
	ExitOK             = 0
	ExitPartialFailure = 1
	ExitFatal          = 2
)

type TargetOutcome struct {
	Rule   string
	Status Status
	Plans  []Plan
	Errors []error
}

// Summary is the outcome of a single rotation cycle.
type Summary struct {
	CycleId    string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time

	Targets []TargetOutcome

	// Errors not tied to a single target: rejected rules, state persistence.
	Errors []error
}

// Plans returns the plans of every target in execution order.
func (s Summary) Plans() []Plan {
	var plans []Plan
	for _, t := range s.Targets {
		plans = append(plans, t.Plans...)
	}
	return plans
}

// ExitCode is ExitFatal when a rule was rejected or a target could not be
// scanned, ExitPartialFailure when a rotation failed and ExitOK otherwise.
// Targets skipped due to lock contention do not count as failures.
func (s Summary) ExitCode() int {
	code := ExitOK

	for _, err := range s.allErrors() {
		var configErr *ConfigError
		var scanErr *ScanError

		switch {
		case errors.As(err, &configErr), errors.As(err, &scanErr):
			return ExitFatal
		case isContention(err):
			continue
		default:
			code = ExitPartialFailure
		}
	}

	return code
}

func (s Summary) allErrors() []error {
	all := append([]error(nil), s.Errors...)
	for _, t := range s.Targets {
		all = append(all, t.Errors...)
	}
	return all
}

func isContention(err error) bool {
	var lockErr *LockContentionError
	return errors.As(err, &lockErr)
}
