package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/halcyonpay/charge-connector/internal/domain"
	gormdb "github.com/halcyonpay/charge-connector/internal/infrastructure/gorm"
	"gorm.io/gorm"
)

type CaptureQueueRepo struct {
	db *gorm.DB
}

func NewCaptureQueueRepo(db *gorm.DB) domain.CaptureQueue {
	return &CaptureQueueRepo{db: db}
}

func (r *CaptureQueueRepo) conn(ctx context.Context) *gorm.DB {
	return gormdb.ExtractTx(ctx, r.db).WithContext(ctx)
}

func (r *CaptureQueueRepo) Enqueue(ctx context.Context, chargeID int64) error {
	return r.conn(ctx).Create(&domain.CaptureQueueItem{
		ChargeID:    chargeID,
		AvailableAt: time.Now(),
	}).Error
}

// Dequeue claims the oldest due item by stamping a lease on it. The claim is
// a conditional update, so two consumers racing for the same row get exactly
// one winner; the loser sees an empty dequeue and polls again.
func (r *CaptureQueueRepo) Dequeue(ctx context.Context, lease time.Duration) (*domain.CaptureQueueItem, error) {
	var claimed *domain.CaptureQueueItem

	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var item domain.CaptureQueueItem
		err := tx.
			Where("available_at <= ? AND locked_until <= ?", now, now).
			Order("available_at ASC").
			First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&domain.CaptureQueueItem{}).
			Where("id = ? AND locked_until <= ?", item.ID, now).
			Update("locked_until", now.Add(lease))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		item.LockedUntil = now.Add(lease)
		claimed = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *CaptureQueueRepo) Ack(ctx context.Context, itemID int64) error {
	return r.conn(ctx).Delete(&domain.CaptureQueueItem{}, itemID).Error
}

func (r *CaptureQueueRepo) Nack(ctx context.Context, itemID int64, backoff time.Duration) error {
	return r.conn(ctx).Model(&domain.CaptureQueueItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"attempts":     gorm.Expr("attempts + 1"),
			"available_at": time.Now().Add(backoff),
			"locked_until": time.Time{},
		}).Error
}
