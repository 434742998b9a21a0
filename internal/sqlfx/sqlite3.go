package sqlfx

import (
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotate/pkg/storage"
	"github.com/yurykabanov/logrotate/pkg/util"
)

type SqliteConfig struct {
	DSN          string
	DatabaseName string

	// MigrationsPath is a migrate source URL such as file://migrations. The
	// migrations embedded into the binary are used when it is empty.
	MigrationsPath string
}

func OpenSqliteDatabase(config *SqliteConfig, logger *logrus.Logger) (*sqlx.DB, error) {
	logger.WithField("dsn", config.DSN).Debug("Connecting to DB with DSN")

	db, err := sqlx.Open("sqlite3", config.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to connect to DB")
	}

	db.MapperFunc(util.CamelToSnakeCase)

	err = migrateSqliteDatabase(db, config)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// OpenReadOnlySqliteDatabase opens an existing database without migrating it.
// Any write through the connection fails.
func OpenReadOnlySqliteDatabase(config *SqliteConfig, logger *logrus.Logger) (*sqlx.DB, error) {
	dsn := readOnlyDSN(config.DSN)

	logger.WithField("dsn", dsn).Debug("Connecting to DB read-only with DSN")

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to connect to DB")
	}

	db.MapperFunc(util.CamelToSnakeCase)

	return db, nil
}

// sqlitePath is the database file of a go-sqlite3 DSN.
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func readOnlyDSN(dsn string) string {
	query := ""
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		query = dsn[i+1:] + "&"
	}

	return "file:" + sqlitePath(dsn) + "?" + query + "mode=ro&_query_only=1"
}

func migrateSqliteDatabase(db *sqlx.DB, config *SqliteConfig) error {
	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return errors.Wrap(err, "Unable to create instance of migrate")
	}

	var m *migrate.Migrate

	if config.MigrationsPath != "" {
		m, err = migrate.NewWithDatabaseInstance(config.MigrationsPath, config.DatabaseName, driver)
	} else {
		source, sourceErr := iofs.New(storage.Migrations, "migrations")
		if sourceErr != nil {
			return errors.Wrap(sourceErr, "Unable to open embedded migrations")
		}

		m, err = migrate.NewWithInstance("iofs", source, config.DatabaseName, driver)
	}
	if err != nil {
		return errors.Wrap(err, "Unable to create instance of migrate")
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "Unable to migrate DB")
	}

	return nil
}
