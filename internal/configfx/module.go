package configfx

import (
	"go.uber.org/fx"
)

// Module expects the parsed *pflag.FlagSet to be supplied by the caller.
var Module = fx.Options(
	fx.Provide(ViperProvider),
)
