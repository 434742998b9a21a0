package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/logrotate/internal/configfx"
	"github.com/yurykabanov/logrotate/internal/domainfx"
	"github.com/yurykabanov/logrotate/internal/loggerfx"
	"github.com/yurykabanov/logrotate/internal/metricsfx"
	"github.com/yurykabanov/logrotate/internal/sqlfx"
	"github.com/yurykabanov/logrotate/pkg/domain"
	"github.com/yurykabanov/logrotate/pkg/report"
)

const (
	startTimeout = 15 * time.Second
	stopTimeout  = 15 * time.Second
)

func main() {
	logger := loggerfx.Logger()

	flags := configfx.PFlags()
	_ = flags.Parse(os.Args[1:])

	once, _ := flags.GetBool(configfx.FlagOnce)
	dryRun, _ := flags.GetBool(configfx.FlagDryRun)

	// A dry run never schedules anything, it always reports a single cycle
	if once || dryRun {
		os.Exit(runOnce(logger, flags, dryRun))
	}

	app := fx.New(
		fx.StartTimeout(startTimeout),
		fx.StopTimeout(stopTimeout),

		fx.Logger(logger),
		fx.Supply(flags),

		loggerfx.Module,
		configfx.Module,
		sqlfx.Module,
		metricsfx.Module,
		domainfx.DaemonModule,
	)

	app.Run()
}

func runOnce(logger *logrus.Logger, flags *pflag.FlagSet, dryRun bool) int {
	var (
		manager *domain.RotationManager
		v       *viper.Viper
	)

	app := fx.New(
		fx.Logger(logger),
		fx.Supply(flags),

		loggerfx.Module,
		configfx.Module,
		sqlfx.Module,
		domainfx.Module,

		fx.Populate(&manager, &v),
	)

	if err := app.Err(); err != nil {
		logger.WithError(err).Error("Unable to initialize")
		return domain.ExitFatal
	}

	format, err := report.ParseFormat(v.GetString(configfx.FlagOutput))
	if err != nil {
		logger.WithError(err).Error("Invalid output format")
		return domain.ExitFatal
	}

	startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	if err := app.Start(startCtx); err != nil {
		logger.WithError(err).Error("Unable to start")
		return domain.ExitFatal
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := manager.RunOnce(ctx)

	if dryRun {
		err = report.WritePlans(os.Stdout, format, summary.Plans())
	} else {
		err = report.WriteSummary(os.Stdout, format, summary)
	}
	if err != nil {
		logger.WithError(err).Error("Unable to write report")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Unable to stop gracefully")
	}

	return summary.ExitCode()
}
