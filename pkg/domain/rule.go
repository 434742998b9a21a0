package domain

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/yurykabanov/logrotate/pkg/archive"
)

type Rule struct {
	Name           string
	TargetPath     string
	MaxSizeBytes   *uint64
	MaxAgeSeconds  *uint64
	MaxGenerations uint32
	Compress       bool
	Archive        archive.Format
	CopyTruncate   bool
	CompressGrace  time.Duration
	SkipEmpty      bool
	FollowSymlinks bool
}

// RuleConfig is a single entry of the `rules` config mapping as it is decoded
// from the config file.
type RuleConfig struct {
	Path           string        `mapstructure:"path"`
	MaxSize        string        `mapstructure:"max_size"`
	MaxSizeBytes   *uint64       `mapstructure:"max_size_bytes"`
	MaxAge         string        `mapstructure:"max_age"`
	MaxAgeSeconds  *uint64       `mapstructure:"max_age_seconds"`
	MaxGenerations int           `mapstructure:"max_generations"`
	Compress       bool          `mapstructure:"compress"`
	Archive        string        `mapstructure:"archive"`
	CopyTruncate   bool          `mapstructure:"copy_truncate"`
	CompressGrace  time.Duration `mapstructure:"compress_grace"`
	SkipEmpty      bool          `mapstructure:"skip_empty"`
	FollowSymlinks bool          `mapstructure:"follow_symlinks"`
}

// RuleSet holds the rules that passed validation along with the errors of
// those that did not.
type RuleSet struct {
	Rules  []Rule
	Errors []error
}

// NewRule validates c and builds the rule named name. The name doubles as the
// target path unless c.Path is set.
func NewRule(name string, c RuleConfig) (Rule, error) {
	invalid := func(err error) (Rule, error) {
		return Rule{}, &ConfigError{Rule: name, Err: err}
	}

	rule := Rule{
		Name:           name,
		TargetPath:     name,
		Compress:       c.Compress,
		CopyTruncate:   c.CopyTruncate,
		CompressGrace:  c.CompressGrace,
		SkipEmpty:      c.SkipEmpty,
		FollowSymlinks: c.FollowSymlinks,
	}

	if c.Path != "" {
		rule.TargetPath = c.Path
	}

	if strings.TrimSpace(rule.TargetPath) == "" {
		return invalid(errors.New("target path is empty"))
	}
	rule.TargetPath = filepath.Clean(rule.TargetPath)

	if strings.ContainsAny(filepath.Dir(rule.TargetPath), "*?[") {
		return invalid(errors.New("wildcards are only supported in the file name"))
	}

	if _, err := filepath.Match(filepath.Base(rule.TargetPath), ""); err != nil {
		return invalid(errors.Wrap(err, "invalid target pattern"))
	}

	switch {
	case c.MaxSizeBytes != nil && c.MaxSize != "":
		return invalid(errors.New("max_size and max_size_bytes are mutually exclusive"))
	case c.MaxSizeBytes != nil:
		size := *c.MaxSizeBytes
		rule.MaxSizeBytes = &size
	case c.MaxSize != "":
		size, err := humanize.ParseBytes(c.MaxSize)
		if err != nil {
			return invalid(errors.Wrap(err, "invalid max_size"))
		}
		rule.MaxSizeBytes = &size
	}

	if rule.MaxSizeBytes != nil && *rule.MaxSizeBytes == 0 {
		return invalid(errors.New("max size must be positive"))
	}

	switch {
	case c.MaxAgeSeconds != nil && c.MaxAge != "":
		return invalid(errors.New("max_age and max_age_seconds are mutually exclusive"))
	case c.MaxAgeSeconds != nil:
		age := *c.MaxAgeSeconds
		rule.MaxAgeSeconds = &age
	case c.MaxAge != "":
		age, err := parseAge(c.MaxAge)
		if err != nil {
			return invalid(errors.Wrap(err, "invalid max_age"))
		}
		rule.MaxAgeSeconds = &age
	}

	if rule.MaxAgeSeconds != nil && *rule.MaxAgeSeconds == 0 {
		return invalid(errors.New("max age must be positive"))
	}

	if rule.MaxSizeBytes == nil && rule.MaxAgeSeconds == nil {
		return invalid(errors.New("at least one of max_size or max_age must be set"))
	}

	if c.MaxGenerations < 1 || int64(c.MaxGenerations) > math.MaxUint32 {
		return invalid(errors.Errorf("max_generations must be between 1 and %d", uint32(math.MaxUint32)))
	}
	rule.MaxGenerations = uint32(c.MaxGenerations)

	format, err := archive.ParseFormat(c.Archive)
	if err != nil {
		return invalid(err)
	}
	rule.Archive = format

	if c.CompressGrace < 0 {
		return invalid(errors.New("compress_grace must not be negative"))
	}

	return rule, nil
}

// MaxAge returns the age threshold as a duration, saturating at the largest
// representable duration.
func (r Rule) MaxAge() (time.Duration, bool) {
	if r.MaxAgeSeconds == nil {
		return 0, false
	}

	seconds := *r.MaxAgeSeconds
	if seconds > uint64(math.MaxInt64/int64(time.Second)) {
		return time.Duration(math.MaxInt64), true
	}

	return time.Duration(seconds) * time.Second, true
}

// Matches reports whether path is a live file governed by the rule.
func (r Rule) Matches(path string) bool {
	if filepath.Dir(path) != filepath.Dir(r.TargetPath) {
		return false
	}

	ok, _ := filepath.Match(filepath.Base(r.TargetPath), filepath.Base(path))
	return ok
}

// parseAge accepts plain seconds, days ("7d") and Go durations ("36h").
func parseAge(s string) (uint64, error) {
	s = strings.TrimSpace(s)

	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseUint(strings.TrimSuffix(s, "d"), 10, 64)
		if err != nil {
			return 0, err
		}
		return days * 24 * 60 * 60, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("negative duration")
	}

	return uint64(d / time.Second), nil
}
