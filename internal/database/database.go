package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/elskow/users-api/internal/config"
)

type Manager struct {
	db     *gorm.DB
	config *config.DatabaseConfig
	logger *zap.Logger
}

// Opener opens a gorm handle for a DSN.
type Opener func(dsn string, cfg *gorm.Config) (*gorm.DB, error)

func postgresOpener(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), cfg)
}

func NewManager(config *config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	return newManager(config, logger, postgresOpener, time.Sleep)
}

func newManager(config *config.DatabaseConfig, logger *zap.Logger, open Opener, sleep func(time.Duration)) (*Manager, error) {
	attempts := config.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := connect(config, logger, open)
		if err == nil {
			logger.Info("database connected",
				zap.String("host", config.Host),
				zap.String("database", config.Name),
				zap.Int("attempt", attempt),
			)
			return &Manager{db: db, config: config, logger: logger}, nil
		}

		lastErr = err
		logger.Warn("database connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		if attempt < attempts {
			sleep(config.ConnectBackoff)
		}
	}

	return nil, fmt.Errorf("connect to database after %d attempts: %w", attempts, lastErr)
}

func (m *Manager) DB() *gorm.DB {
	return m.db
}

func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats reports pool statistics; zero when the handle is unavailable.
func (m *Manager) Stats() sql.DBStats {
	sqlDB, err := m.db.DB()
	if err != nil {
		return sql.DBStats{}
	}
	return sqlDB.Stats()
}

func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DSN renders the libpq keyword/value connection string.
func DSN(config *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		config.Host,
		config.User,
		config.Password,
		config.Name,
		config.Port,
		config.SSLMode,
	)
}

func connect(config *config.DatabaseConfig, log *zap.Logger, open Opener) (*gorm.DB, error) {
	level := logger.Warn
	if config.LogQueries {
		level = logger.Info
	}

	db, err := open(DSN(config), &gorm.Config{
		Logger: logger.New(
			zap.NewStdLog(log.Named("gorm")),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
			},
		),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}
