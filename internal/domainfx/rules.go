package domainfx

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/yurykabanov/logrotate/pkg/domain"
)

const (
	ConfigRules = "rules"
)

// Viper lowercases keys, so camelCase fields such as maxSizeBytes arrive
// as "maxsizebytes".
var ruleFieldAliases = map[string]string{
	"maxsize":        "max_size",
	"maxsizebytes":   "max_size_bytes",
	"maxage":         "max_age",
	"maxageseconds":  "max_age_seconds",
	"maxgenerations": "max_generations",
	"copytruncate":   "copy_truncate",
	"compressgrace":  "compress_grace",
	"skipempty":      "skip_empty",
	"followsymlinks": "follow_symlinks",
}

// LoadRules decodes the `rules` mapping. Every entry is validated on its own:
// a malformed entry is reported in RuleSet.Errors and the rest still load.
//
// Viper lowercases map keys, so entries whose target path has upper case
// letters have to set `path` explicitly.
func LoadRules(v *viper.Viper, logger *logrus.Logger) (*domain.RuleSet, error) {
	raw := v.GetStringMap(ConfigRules)

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	set := &domain.RuleSet{}

	for _, name := range names {
		rule, err := decodeRule(name, raw[name])
		if err != nil {
			logger.WithError(err).WithField("rule", name).Error("Rejected rule")
			set.Errors = append(set.Errors, err)
			continue
		}

		logger.WithFields(logrus.Fields{
			"rule":            rule.Name,
			"target_path":     rule.TargetPath,
			"max_generations": rule.MaxGenerations,
			"compress":        rule.Compress,
		}).Debug("Loaded rule")

		set.Rules = append(set.Rules, rule)
	}

	return set, nil
}

func decodeRule(name string, entry interface{}) (domain.Rule, error) {
	fields, ok := entry.(map[string]interface{})
	if !ok {
		return domain.Rule{}, &domain.ConfigError{Rule: name, Err: errors.New("rule must be a mapping")}
	}

	normalized := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		if alias, ok := ruleFieldAliases[key]; ok {
			key = alias
		}
		normalized[key] = value
	}

	sub := viper.New()

	err := sub.MergeConfigMap(normalized)
	if err != nil {
		return domain.Rule{}, &domain.ConfigError{Rule: name, Err: err}
	}

	var config domain.RuleConfig

	err = sub.Unmarshal(&config)
	if err != nil {
		return domain.Rule{}, &domain.ConfigError{Rule: name, Err: errors.Wrap(err, "Unable to unmarshal rule")}
	}

	return domain.NewRule(name, config)
}
