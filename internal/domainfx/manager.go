package domainfx

import (
	"context"
	"os"
	"path/filepath"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/logrotate/internal/configfx"
	"github.com/yurykabanov/logrotate/pkg/domain"
	"github.com/yurykabanov/logrotate/pkg/http/handler"
	"github.com/yurykabanov/logrotate/pkg/lock"
)

const (
	ConfigSchedule      = "schedule"
	ConfigRunAtStart    = "run_at_start"
	ConfigLockDirectory = "lock.directory"
)

func NewCron() *cron.Cron {
	return cron.New()
}

type LockManagerConfig struct {
	BaseDirectory string
}

func LockManagerConfigProvider(v *viper.Viper) *LockManagerConfig {
	v.SetDefault(ConfigLockDirectory, filepath.Join(os.TempDir(), "logrotate-locks"))

	return &LockManagerConfig{
		BaseDirectory: v.GetString(ConfigLockDirectory),
	}
}

func LockManager(config *LockManagerConfig) domain.Locker {
	return lock.New(config.BaseDirectory)
}

func Scanner(logger *logrus.Logger) *domain.Scanner {
	return domain.NewScanner(logger)
}

func Executor(logger *logrus.Logger) *domain.Executor {
	return domain.NewExecutor(logger)
}

func ManagerOptionsProvider(v *viper.Viper) domain.ManagerOptions {
	v.SetDefault(ConfigSchedule, "@hourly")
	v.SetDefault(ConfigRunAtStart, true)

	return domain.ManagerOptions{
		Schedule:   v.GetString(ConfigSchedule),
		DryRun:     v.GetBool(configfx.FlagDryRun),
		RunAtStart: v.GetBool(ConfigRunAtStart),
	}
}

func RotationManager(
	logger *logrus.Logger,
	rules *domain.RuleSet,
	scanner *domain.Scanner,
	executor *domain.Executor,
	repository domain.StateRepository,
	locker domain.Locker,
	cron *cron.Cron,
	options domain.ManagerOptions,
) (*domain.RotationManager, handler.RotationManager) {
	manager := domain.NewRotationManager(logger, rules, scanner, executor, repository, locker, cron, options)

	return manager, manager
}

// RunRotationManager runs the cron loop of the manager for the lifetime of
// the application. Only the daemon mode invokes it. A manager that cannot
// start, e.g. because of an invalid schedule, shuts the application down.
func RunRotationManager(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	logger *logrus.Logger,
	manager *domain.RotationManager,
) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)

				err := manager.Run(ctx)
				if err != nil {
					logger.WithError(err).Error("Rotation manager stopped")
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()

			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
