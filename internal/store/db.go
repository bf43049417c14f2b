package store

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps a *gorm.DB connected and migrated against the schema in models.go,
// the same open+AutoMigrate shape as the teacher's MySQLRecorder.
type DB struct {
	gorm *gorm.DB
}

// Open connects to the configured Postgres DSN and runs AutoMigrate.
func Open(dsn string, logger *zap.Logger) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Info("store connected and migrated")
	return &DB{gorm: db}, nil
}

// GORM exposes the underlying *gorm.DB for repositories in this package.
func (d *DB) GORM() *gorm.DB { return d.gorm }

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}
