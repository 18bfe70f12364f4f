package database

import (
	"fmt"
	"time"

	"licitacao/internal/config"
	"licitacao/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection opens the postgres pool described by cfg and applies its
// limits. SQL is only echoed in development.
func NewConnection(cfg config.DatabaseConfig, development bool) (*gorm.DB, error) {
	level := gormlogger.Warn
	if development {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates the schema for every model. Order matters:
// catalogs before the processes that reference them.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&model.Department{},
		&model.Role{},
		&model.Permission{},
		&model.User{},
		&model.BiddingModality{},
		&model.ModalityStep{},
		&model.ResourceSource{},
		&model.Process{},
		&model.ProcessStep{},
		&model.ProcessParticipant{},
		&model.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	log.Info("database schema up to date")
	return nil
}
