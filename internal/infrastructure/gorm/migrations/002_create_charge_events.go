package migrations

import (
	"github.com/halcyonpay/charge-connector/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "002_create_charge_events",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.ChargeEvent{})
		},
	})
}
