package history

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
)

//go:embed migrations
var migrationsFS embed.FS

// ErrUnsupportedDriver is returned for database drivers other than sqlite
// and mysql.
var ErrUnsupportedDriver = errors.New("unsupported history driver")

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	defaultSQLiteDSN = "test-output/history.db"
)

// Config selects and locates the history database.
type Config struct {
	Driver string
	DSN    string
}

// ConfigFrom reads history.driver and history.dsn from cfg.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Driver: cfg.GetOr(config.KeyHistoryDriver, DriverSQLite),
		DSN:    cfg.GetOr(config.KeyHistoryDSN, defaultSQLiteDSN),
	}
}

func normalizeDriver(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "mysql":
		return DriverMySQL, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}

// Open connects to the configured database.
func Open(cfg Config) (*gorm.DB, error) {
	driver, err := normalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return db, nil
}

// ensureDir creates the parent folder of a sqlite database file.
func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

func newMigrate(db *gorm.DB, driver string) (*migrate.Migrate, error) {
	driver, err := normalizeDriver(driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	var target database.Driver
	switch driver {
	case DriverMySQL:
		target, err = migratemysql.WithInstance(sqlDB, &migratemysql.Config{})
	default:
		target, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", src, driver, target)
}

// Migrate applies all pending migrations. The migrator is not closed
// because closing it would close db.
func Migrate(db *gorm.DB, driver string) error {
	m, err := newMigrate(db, driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Rollback reverts the most recent migration.
func Rollback(db *gorm.DB, driver string) error {
	m, err := newMigrate(db, driver)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}

// Version returns the applied migration version.
func Version(db *gorm.DB, driver string) (uint, bool, error) {
	m, err := newMigrate(db, driver)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
