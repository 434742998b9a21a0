package sqlfx

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/logrotate/internal/configfx"
	"github.com/yurykabanov/logrotate/pkg/domain"
	"github.com/yurykabanov/logrotate/pkg/http/handler"
	"github.com/yurykabanov/logrotate/pkg/storage"
)

const (
	ConfigStateDriver     = "state.driver"
	ConfigStatePath       = "state.path"
	ConfigStateDSN        = "state.dsn"
	ConfigStateMigrations = "state.migrations"
)

const (
	DriverFile   = "file"
	DriverSqlite = "sqlite"
)

type StateConfig struct {
	Driver string
	Path   string
	Sqlite SqliteConfig

	// DryRun opens the state read-only, nothing is created or migrated.
	DryRun bool
}

func StateConfigProvider(v *viper.Viper) (*StateConfig, error) {
	v.SetDefault(ConfigStateDriver, DriverFile)
	v.SetDefault(ConfigStatePath, "./logrotate.state.json")
	v.SetDefault(ConfigStateDSN, "./logrotate.db?_loc=UTC")

	config := &StateConfig{
		Driver: v.GetString(ConfigStateDriver),
		Path:   v.GetString(ConfigStatePath),
		Sqlite: SqliteConfig{
			DSN:            v.GetString(ConfigStateDSN),
			DatabaseName:   "logrotate",
			MigrationsPath: v.GetString(ConfigStateMigrations),
		},
		DryRun: v.GetBool(configfx.FlagDryRun),
	}

	switch config.Driver {
	case DriverFile, DriverSqlite:
		return config, nil
	}

	return nil, &domain.ConfigError{Err: errors.Errorf("unknown state driver %q", config.Driver)}
}

// StateRepository opens the configured state backend. The sqlite database is
// closed when the application stops.
func StateRepository(lc fx.Lifecycle, config *StateConfig, logger *logrus.Logger) (
	domain.StateRepository,
	handler.StateRepository,
	error,
) {
	if config.Driver == DriverSqlite {
		return sqliteStateRepository(lc, config, logger)
	}

	logger.WithField("path", config.Path).Debug("Using state file")

	repo, err := storage.OpenFileStateRepository(config.Path)
	if err != nil {
		return nil, nil, err
	}

	if !config.DryRun {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return repo.Flush(ctx)
			},
		})
	}

	return repo, repo, nil
}

func sqliteStateRepository(lc fx.Lifecycle, config *StateConfig, logger *logrus.Logger) (
	domain.StateRepository,
	handler.StateRepository,
	error,
) {
	var (
		db  *sqlx.DB
		err error
	)

	if config.DryRun {
		if _, statErr := os.Stat(sqlitePath(config.Sqlite.DSN)); os.IsNotExist(statErr) {
			logger.WithField("dsn", config.Sqlite.DSN).Debug("No state database yet, using empty state")

			repo := storage.NewMemoryStateRepository()
			return repo, repo, nil
		}

		db, err = OpenReadOnlySqliteDatabase(&config.Sqlite, logger)
	} else {
		db, err = OpenSqliteDatabase(&config.Sqlite, logger)
	}
	if err != nil {
		return nil, nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})

	repo := storage.NewStateRepository(db)

	return repo, repo, nil
}
