package repositories

import (
	"context"
	"errors"

	"github.com/halcyonpay/charge-connector/internal/domain"
	gormdb "github.com/halcyonpay/charge-connector/internal/infrastructure/gorm"
	"gorm.io/gorm"
)

type GatewayAccountRepo struct {
	db *gorm.DB
}

func NewGatewayAccountRepo(db *gorm.DB) domain.GatewayAccountStore {
	return &GatewayAccountRepo{db: db}
}

func (r *GatewayAccountRepo) FindByID(ctx context.Context, id int64) (*domain.GatewayAccount, error) {
	var account domain.GatewayAccount
	err := gormdb.ExtractTx(ctx, r.db).WithContext(ctx).
		Where("id = ?", id).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
