package domainfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(LoadRules),
	fx.Provide(NewCron),
	fx.Provide(LockManagerConfigProvider),
	fx.Provide(LockManager),
	fx.Provide(Scanner),
	fx.Provide(Executor),
	fx.Provide(ManagerOptionsProvider),
	fx.Provide(RotationManager),
)

// DaemonModule schedules rotation cycles in the background.
var DaemonModule = fx.Options(
	Module,
	fx.Invoke(RunRotationManager),
)
