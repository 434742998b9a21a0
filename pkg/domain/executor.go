package domain

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotate/pkg/appcontext"
	"github.com/yurykabanov/logrotate/pkg/archive"
	"github.com/yurykabanov/logrotate/pkg/util"
)

type PlanResult struct {
	Plan Plan
	Err  error
}

// Executor applies rotation plans to the filesystem. Every rename or removal
// is a single filesystem call; nothing is rolled back when a later step of the
// same plan fails.
type Executor struct {
	logger logrus.FieldLogger

	// wait blocks for the compression grace period.
	wait func(ctx context.Context, d time.Duration) error
}

func NewExecutor(logger logrus.FieldLogger) *Executor {
	return &Executor{
		logger: logger,
		wait:   sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute applies plans in the given order. A failing plan does not stop the
// remaining ones; once ctx is done the rest are reported as failed.
func (e *Executor) Execute(ctx context.Context, plans []Plan) []PlanResult {
	results := make([]PlanResult, 0, len(plans))

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			results = append(results, PlanResult{
				Plan: plan,
				Err:  &ExecutionError{Path: plan.Target.Path, Op: "cancel", Err: err},
			})
			continue
		}

		results = append(results, PlanResult{Plan: plan, Err: e.ExecutePlan(ctx, plan)})
	}

	return results
}

func (e *Executor) ExecutePlan(ctx context.Context, plan Plan) error {
	ctx = appcontext.WithFile(ctx, plan.Target.Path)
	logger := appcontext.LoggerFromContext(e.logger, ctx)

	var err error

	switch plan.Action {
	case ActionNone:
		return nil
	case ActionDelete:
		logger.Info("Deleting generation beyond retention")
		err = remove(plan.Target.Path)
	case ActionRotateTruncate, ActionRotateCompress:
		logger.WithField("reason", plan.Reason).Info("Rotating file")
		err = e.rotate(ctx, plan)
	}

	if err != nil {
		logger.WithError(err).Error("Unable to apply plan")
	}

	return err
}

func (e *Executor) rotate(ctx context.Context, plan Plan) error {
	logger := appcontext.LoggerFromContext(e.logger, ctx)

	base := plan.Target.Path
	rule := plan.Rule

	link, err := os.Lstat(base)
	if err != nil {
		return &ExecutionError{Path: base, Op: "stat", Err: err}
	}

	// A followed symlink stays in place: its target is copied to the
	// generation next to the link and truncated through it.
	copyTruncate := rule.CopyTruncate || link.Mode()&os.ModeSymlink != 0

	info, err := os.Stat(base)
	if err != nil {
		return &ExecutionError{Path: base, Op: "stat", Err: err}
	}

	generations, err := listGenerations(base)
	if err != nil {
		return &ExecutionError{Path: base, Op: "list generations", Err: err}
	}

	// Oldest first, so no generation is overwritten before it has moved.
	sort.Slice(generations, func(i, j int) bool {
		return generations[i].index > generations[j].index
	})

	for _, g := range generations {
		if g.index < rule.MaxGenerations {
			continue
		}

		logger.WithField("generation", g.index).Debug("Dropping generation beyond retention")
		if err := remove(g.path); err != nil {
			return err
		}
	}

	for _, g := range generations {
		if g.index >= rule.MaxGenerations {
			continue
		}

		dst := GenerationPath(base, g.index+1, g.ext)
		if err := os.Rename(g.path, dst); err != nil {
			return &ExecutionError{Path: g.path, Op: "rename", Err: err}
		}
	}

	first := GenerationPath(base, 1, "")

	if copyTruncate {
		if err := util.CopyFile(base, first); err != nil {
			return &ExecutionError{Path: base, Op: "copy", Err: err}
		}
		if err := os.Truncate(base, 0); err != nil {
			return &ExecutionError{Path: base, Op: "truncate", Err: err}
		}
	} else {
		if err := os.Rename(base, first); err != nil {
			return &ExecutionError{Path: base, Op: "rename", Err: err}
		}
		if err := recreate(base, info); err != nil {
			return &ExecutionError{Path: base, Op: "create", Err: err}
		}
		if err := util.CopyOwner(base, info); err != nil {
			logger.WithError(err).Warn("Unable to preserve owner of the recreated file")
		}
	}

	if plan.Action == ActionRotateCompress {
		return e.compress(ctx, first, rule.Archive, rule.CompressGrace)
	}

	return nil
}

// compress runs strictly after the rename, so an interrupted compression
// leaves a complete uncompressed generation behind.
func (e *Executor) compress(ctx context.Context, path string, format archive.Format, grace time.Duration) error {
	if grace > 0 {
		if err := e.wait(ctx, grace); err != nil {
			return &ExecutionError{Path: path, Op: "compress", Err: err}
		}
	}

	if _, err := archive.Compress(path, format); err != nil {
		return &ExecutionError{Path: path, Op: "compress", Err: err}
	}

	return remove(path)
}

func recreate(path string, info os.FileInfo) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if os.IsExist(err) {
		// The writer reopened the file already.
		return nil
	}
	if err != nil {
		return err
	}

	err = f.Close()
	if err != nil {
		return err
	}

	return os.Chmod(path, info.Mode().Perm())
}

func remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return &ExecutionError{Path: path, Op: "delete", Err: err}
	}
	return nil
}
