package gormdb

import (
	"github.com/halcyonpay/charge-connector/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewTestConnection() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// In-memory sqlite is per-connection; a second pooled connection would
	// see an empty database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	db.AutoMigrate(
		&domain.Charge{},
		&domain.ChargeEvent{},
		&domain.CaptureQueueItem{},
		&domain.GatewayAccount{},
	)
	return db, nil
}
