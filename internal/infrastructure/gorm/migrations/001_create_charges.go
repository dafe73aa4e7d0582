package migrations

import (
	"github.com/halcyonpay/charge-connector/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "001_create_charges",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.Charge{})
		},
	})
}
