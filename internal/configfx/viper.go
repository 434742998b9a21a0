package configfx

import (
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix              = "logrotate"
	DefaultConfigDirectory = "logrotate"
	DefaultConfigFile      = "logrotate"
)

var (
	defaultConfigPaths = []string{
		".",
		"./config",
		path.Join("/etc", DefaultConfigDirectory),
	}
)

func ViperProvider(logger *logrus.Logger, flagSet *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	err := v.BindPFlags(flagSet)
	if err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if configFile := v.GetString(FlagConfig); configFile != "" {
		// An explicitly given config file must exist and be valid
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}

		logger.WithField("file", v.ConfigFileUsed()).Debug("Loaded config")

		return v, nil
	}

	// Otherwise look in the default locations, a missing file is not an error
	v.SetConfigName(DefaultConfigFile)

	for _, dir := range defaultConfigPaths {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		logger.WithError(err).Warn("Couldn't read config file")
	}

	return v, nil
}
