package configfx

import (
	"os"

	"github.com/spf13/pflag"
)

const (
	FlagConfig = "config"
	FlagDryRun = "dry-run"
	FlagOnce   = "once"
	FlagOutput = "output"
)

func PFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)

	fs.StringP(FlagConfig, "c", "", "Config file")
	fs.Bool(FlagDryRun, false, "Print the rotation plan without touching any file")
	fs.Bool(FlagOnce, false, "Run a single rotation cycle and exit")
	fs.StringP(FlagOutput, "o", "text", "Output format of --once and --dry-run: text, json or yaml")

	return fs
}
