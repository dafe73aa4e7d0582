package migrations

import (
	"github.com/halcyonpay/charge-connector/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "003_create_capture_queue",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.CaptureQueueItem{})
		},
	})
}
