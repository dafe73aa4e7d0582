package migrations

import (
	"github.com/halcyonpay/charge-connector/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "004_create_gateway_accounts",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.GatewayAccount{})
		},
	})
}
