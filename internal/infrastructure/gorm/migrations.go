package gormdb

import (
	"github.com/halcyonpay/charge-connector/internal/infrastructure/gorm/migrations"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	return migrations.Run(db)
}
