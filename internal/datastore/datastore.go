// Package datastore opens the database connection and owns schema migration.
package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foliowatch/foliowatch-go/internal/conf"
	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// Open connects to the configured database and runs schema migration.
func Open(settings *conf.DatabaseSettings) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch settings.Type {
	case "sqlite", "":
		dialector = sqlite.Open(settings.DSN)
	case "mysql":
		dialector = mysql.Open(settings.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q", settings.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema for all pipeline entities.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.AlertRule{},
		&entities.Alert{},
		&entities.DeliveryReceipt{},
		&entities.Notification{},
		&entities.NotificationPreference{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
