package sqlfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(StateConfigProvider),
	fx.Provide(StateRepository),
)
