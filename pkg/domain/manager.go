package domain

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotate/pkg/appcontext"
	"github.com/yurykabanov/logrotate/pkg/util"
)

// Rotation manager is the core of the rotator. It runs rotation cycles over
// all rules, either once or on a cron schedule, and keeps the rotation state
// up to date.
type RotationManager struct {
	logger logrus.FieldLogger

	rules       []Rule
	ruleErrors  []error
	schedule    string
	dryRun      bool
	runAtStart  bool
	now         func() time.Time
	nextCycleId func() string

	scanner  scanner
	executor executor
	repo     StateRepository
	locker   Locker

	cron  cron
	ticks chan time.Time

	mu   sync.RWMutex
	last *Summary
}

type ManagerOptions struct {
	Schedule   string
	DryRun     bool
	RunAtStart bool
	Now        func() time.Time
}

type scanner interface {
	Scan(context.Context, Rule) ([]FileRecord, error)
}

type executor interface {
	Execute(context.Context, []Plan) []PlanResult
}

type cron interface {
	AddFunc(spec string, cmd func()) error
	Start()
	Stop()
}

func NewRotationManager(
	logger logrus.FieldLogger,
	rules *RuleSet,
	scanner scanner,
	executor executor,
	repo StateRepository,
	locker Locker,
	cron cron,
	options ManagerOptions,
) *RotationManager {
	now := options.Now
	if now == nil {
		now = time.Now
	}

	return &RotationManager{
		logger: logger,

		rules:       rules.Rules,
		ruleErrors:  rules.Errors,
		schedule:    options.Schedule,
		dryRun:      options.DryRun,
		runAtStart:  options.RunAtStart,
		now:         now,
		nextCycleId: func() string { return util.RandomHex(8) },

		scanner:  scanner,
		executor: executor,
		repo:     repo,
		locker:   locker,

		cron:  cron,
		ticks: make(chan time.Time, 1),
	}
}

// Run schedules rotation cycles and blocks until ctx is done. A tick that
// fires while a cycle is still running is dropped.
func (m *RotationManager) Run(ctx context.Context) error {
	err := m.cron.AddFunc(m.schedule, func() { m.dispatch(m.now()) })
	if err != nil {
		return &ConfigError{Err: err}
	}

	if m.runAtStart {
		m.dispatch(m.now())
	}

	m.logger.WithField("spec", m.schedule).Debug("Starting cron")
	m.cron.Start()
	defer m.cron.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.ticks:
			m.RunOnce(ctx)
		}
	}
}

func (m *RotationManager) dispatch(t time.Time) {
	select {
	case m.ticks <- t:
		m.logger.WithField("created_at", t).Debug("Dispatched rotation cycle")
	default:
		m.logger.WithField("created_at", t).Warn("Previous rotation cycle is still running, skipping")
	}
}

// RunOnce runs a single cycle over every rule. Rules are independent: a
// failing rule never prevents the others from rotating.
func (m *RotationManager) RunOnce(ctx context.Context) Summary {
	summary := Summary{
		CycleId:   m.nextCycleId(),
		DryRun:    m.dryRun,
		StartedAt: m.now(),
	}

	ctx = appcontext.WithCycleId(ctx, summary.CycleId)
	logger := appcontext.LoggerFromContext(m.logger, ctx)

	summary.Errors = append(summary.Errors, m.ruleErrors...)
	for _, err := range m.ruleErrors {
		logger.WithError(err).Error("Rule rejected")
	}

	if len(m.rules) == 0 {
		summary.Errors = append(summary.Errors, &ConfigError{Err: errNoRules})
		logger.Error("No usable rules configured")
	}

	for _, rule := range m.rules {
		summary.Targets = append(summary.Targets, m.rotateTarget(ctx, rule, summary.StartedAt))
	}

	if !m.dryRun {
		summary.Errors = append(summary.Errors, m.persistState(ctx)...)
	}

	summary.FinishedAt = m.now()

	m.mu.Lock()
	m.last = &summary
	m.mu.Unlock()

	m.logSummary(logger, summary)

	return summary
}

// LastSummary returns the outcome of the most recent cycle.
func (m *RotationManager) LastSummary() (Summary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.last == nil {
		return Summary{}, false
	}
	return *m.last, true
}

func (m *RotationManager) Rules() []Rule {
	return m.rules
}

func (m *RotationManager) rotateTarget(ctx context.Context, rule Rule, now time.Time) TargetOutcome {
	ctx = appcontext.WithRuleName(ctx, rule.Name)
	logger := appcontext.LoggerFromContext(m.logger, ctx)

	outcome := TargetOutcome{Rule: rule.Name}

	// The lock covers scanning as well, so a concurrent run cannot change
	// the file set between planning and execution.
	if !m.dryRun {
		unlock, ok, err := m.locker.TryLock(rule.TargetPath)
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Errors = append(outcome.Errors, &ExecutionError{Path: rule.TargetPath, Op: "lock", Err: err})
			return outcome
		}
		if !ok {
			logger.Warn("Target is locked by another run, skipping")
			outcome.Status = StatusSkipped
			outcome.Errors = append(outcome.Errors, &LockContentionError{Rule: rule.Name})
			return outcome
		}

		defer func() {
			if err := unlock(); err != nil {
				logger.WithError(err).Error("Unable to release lock")
			}
		}()
	}

	records, err := m.scanner.Scan(ctx, rule)
	if err != nil {
		logger.WithError(err).Error("Unable to scan target")
		outcome.Status = StatusFailed
		outcome.Errors = append(outcome.Errors, err)
		return outcome
	}

	outcome.Plans = m.applyState(ctx, PlanTarget(rule, records, now), now)

	if !hasWork(outcome.Plans) {
		outcome.Status = StatusUnchanged
		return outcome
	}

	if m.dryRun {
		outcome.Status = StatusPlanned
		return outcome
	}

	for _, result := range m.executor.Execute(ctx, outcome.Plans) {
		if result.Err != nil {
			outcome.Errors = append(outcome.Errors, result.Err)
			continue
		}

		if !result.Plan.Action.IsRotation() {
			continue
		}

		err := m.repo.RecordSuccess(ctx, result.Plan.Target.Path, now)
		if err != nil {
			logger.WithError(err).Error("Unable to record rotation")
			outcome.Errors = append(outcome.Errors, &ExecutionError{Path: result.Plan.Target.Path, Op: "record state", Err: err})
		}
	}

	outcome.Status = StatusSucceeded
	if len(outcome.Errors) > 0 {
		outcome.Status = StatusFailed
	}

	return outcome
}

// applyState downgrades age triggered rotations of files that were rotated
// more recently than the rule's max age. Size triggered plans are kept.
func (m *RotationManager) applyState(ctx context.Context, plans []Plan, now time.Time) []Plan {
	logger := appcontext.LoggerFromContext(m.logger, ctx)

	for i, plan := range plans {
		if plan.Reason != ReasonAge {
			continue
		}

		maxAge, _ := plan.Rule.MaxAge()

		at, ok, err := m.repo.LastRotatedAt(ctx, plan.Target.Path)
		if err != nil {
			logger.WithError(err).WithField("file", plan.Target.Path).Warn("Unable to read rotation state")
			continue
		}

		if ok && now.Sub(at) < maxAge {
			plans[i].Action = ActionNone
			plans[i].Reason = ReasonRecentlyRotated
			plans[i].ResultingGenerations = nil
		}
	}

	return plans
}

func (m *RotationManager) persistState(ctx context.Context) []error {
	logger := appcontext.LoggerFromContext(m.logger, ctx)

	var errs []error

	err := m.repo.Prune(ctx, func(targetPath string) bool {
		for _, rule := range m.rules {
			if rule.Matches(targetPath) {
				return true
			}
		}
		return false
	})
	if err != nil {
		logger.WithError(err).Error("Unable to prune rotation state")
		errs = append(errs, &ExecutionError{Op: "prune state", Err: err})
	}

	err = m.repo.Flush(ctx)
	if err != nil {
		logger.WithError(err).Error("Unable to persist rotation state")
		errs = append(errs, &ExecutionError{Op: "persist state", Err: err})
	}

	return errs
}

func (m *RotationManager) logSummary(logger logrus.FieldLogger, summary Summary) {
	for _, t := range summary.Targets {
		fields := logrus.Fields{"rule": t.Rule, "status": t.Status, "total_plans": len(t.Plans)}

		if len(t.Errors) == 0 {
			logger.WithFields(fields).Info("Target finished")
			continue
		}

		for _, err := range t.Errors {
			logger.WithFields(fields).WithError(err).Warn("Target finished with error")
		}
	}

	logger.WithFields(logrus.Fields{
		"exit_code":   summary.ExitCode(),
		"duration_ms": summary.FinishedAt.Sub(summary.StartedAt).Nanoseconds() / 1e6,
	}).Info("Rotation cycle finished")
}

func hasWork(plans []Plan) bool {
	for _, p := range plans {
		if p.Action != ActionNone {
			return true
		}
	}
	return false
}
