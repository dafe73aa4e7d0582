package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halcyonpay/charge-connector/internal/domain"
	gormdb "github.com/halcyonpay/charge-connector/internal/infrastructure/gorm"
	"gorm.io/gorm"
)

type ChargeRepo struct {
	db *gorm.DB
}

func NewChargeRepo(db *gorm.DB) domain.ChargeStore {
	return &ChargeRepo{db: db}
}

func (r *ChargeRepo) conn(ctx context.Context) *gorm.DB {
	return gormdb.ExtractTx(ctx, r.db).WithContext(ctx)
}

func (r *ChargeRepo) Create(ctx context.Context, charge *domain.Charge) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(charge).Error; err != nil {
			return err
		}
		return tx.Create(&domain.ChargeEvent{
			ChargeID:  charge.ID,
			Status:    charge.Status,
			CreatedAt: time.Now(),
		}).Error
	})
}

func (r *ChargeRepo) FindByID(ctx context.Context, id int64) (*domain.Charge, error) {
	var charge domain.Charge
	err := r.conn(ctx).Where("id = ?", id).First(&charge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *ChargeRepo) FindByExternalID(ctx context.Context, externalID string) (*domain.Charge, error) {
	var charge domain.Charge
	err := r.conn(ctx).Where("external_id = ?", externalID).First(&charge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

// CompareAndSetStatus is the sole write path for charge status and the
// mutual-exclusion mechanism for lifecycle operations: the conditional UPDATE
// is atomic at the database, so it serializes concurrent operations on one
// charge across processes. A lost race is reloaded and classified so callers
// can tell "already in progress" from "wrong state" from "expired".
func (r *ChargeRepo) CompareAndSetStatus(ctx context.Context, id int64, expected []domain.ChargeStatus, next domain.ChargeStatus) error {
	// The transition table is load-bearing here: only expected statuses with
	// a defined edge to next can win the update, whatever the caller asked.
	legal := make([]domain.ChargeStatus, 0, len(expected))
	for _, status := range expected {
		if status.CanTransitionTo(next) {
			legal = append(legal, status)
		}
	}
	if len(legal) == 0 {
		return domain.ErrInvalidStateTransition(fmt.Sprintf("%d", id))
	}

	var appErr *domain.AppError

	txErr := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Charge{}).
			Where("id = ? AND status IN ?", id, statusStrings(legal)).
			Update("status", string(next))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 1 {
			return tx.Create(&domain.ChargeEvent{
				ChargeID:  id,
				Status:    next,
				CreatedAt: time.Now(),
			}).Error
		}

		var charge domain.Charge
		err := tx.Where("id = ?", id).First(&charge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			appErr = domain.ErrChargeNotFound(fmt.Sprintf("%d", id))
			return appErr
		}
		if err != nil {
			return err
		}

		appErr = classifyConflict(&charge, next)
		if appErr == nil {
			return nil
		}
		return appErr
	})

	if appErr != nil {
		return appErr
	}
	if txErr != nil {
		return txErr
	}
	return nil
}

// classifyConflict decides what a failed CAS means from the charge's current
// status. A repeat request for a status the charge already holds is an
// idempotent success, except for in-progress lock statuses and pending
// capture statuses, where a second requester must observe the held lock.
func classifyConflict(charge *domain.Charge, next domain.ChargeStatus) *domain.AppError {
	op := operationLabel(next)

	switch {
	case charge.Status == next && (next.IsInProgress() || next.IsCapturePending()):
		return domain.ErrOperationInProgress(op, charge.ExternalID)
	case charge.Status == next:
		return nil
	case charge.Status == domain.StatusExpired || charge.Status == domain.StatusExpireCancelFailed:
		return domain.ErrChargeExpired(op, charge.ExternalID)
	case charge.Status.IsInProgress():
		return domain.ErrOperationInProgress(op, charge.ExternalID)
	default:
		return domain.ErrInvalidStateTransition(charge.ExternalID)
	}
}

// operationLabel names the lifecycle operation implied by the target status,
// for user-visible conflict messages.
func operationLabel(next domain.ChargeStatus) string {
	switch next {
	case domain.StatusAuthorisationReady, domain.StatusAuthorisationSuccess,
		domain.StatusAuthorisationRejected, domain.StatusAuthorisationError,
		domain.StatusAuthorisationUnexpected, domain.StatusAuthorisationTimeout,
		domain.StatusAuthorisation3DSRequired, domain.StatusAuthorisationErrCancelled:
		return "Authorisation"
	case domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry,
		domain.StatusCaptureReady, domain.StatusCaptureSubmitted,
		domain.StatusCaptured, domain.StatusCaptureError,
		domain.StatusAwaitingCaptureRequest:
		return "Capture"
	case domain.StatusCancelReady, domain.StatusUserCancelled,
		domain.StatusSystemCancelled, domain.StatusCancelError,
		domain.StatusSystemCancelError:
		return "Cancellation"
	case domain.StatusExpired, domain.StatusExpireCancelFailed:
		return "Expiry"
	default:
		return "Operation"
	}
}

// SetGatewayTransactionID writes the PSP reference only when none is
// recorded; a later failed operation can never clobber it. Losing the
// conditional update is a no-op, not an error.
func (r *ChargeRepo) SetGatewayTransactionID(ctx context.Context, id int64, transactionID string) error {
	return r.conn(ctx).Model(&domain.Charge{}).
		Where("id = ? AND (gateway_transaction_id IS NULL OR gateway_transaction_id = '')", id).
		Update("gateway_transaction_id", transactionID).Error
}

func (r *ChargeRepo) UpdateCardDetails(ctx context.Context, id int64, details *domain.CardDetails) error {
	return r.conn(ctx).Model(&domain.Charge{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"card_masked_pan":      details.MaskedPAN,
			"card_brand":           details.Brand,
			"card_expiry_date":     details.ExpiryDate,
			"card_cardholder_name": details.CardholderName,
			"card_address_line":    details.AddressLine,
		}).Error
}

func (r *ChargeRepo) ListByStatusOlderThan(ctx context.Context, statuses []domain.ChargeStatus, age time.Duration, limit int) ([]domain.Charge, error) {
	var charges []domain.Charge
	q := r.conn(ctx).
		Where("status IN ? AND created_at < ?", statusStrings(statuses), time.Now().Add(-age)).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&charges).Error; err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *ChargeRepo) ListByStatusAndProvider(ctx context.Context, statuses []domain.ChargeStatus, provider string, limit int) ([]domain.Charge, error) {
	var charges []domain.Charge
	q := r.conn(ctx).
		Joins("JOIN gateway_accounts ON gateway_accounts.id = charges.gateway_account_id").
		Where("charges.status IN ? AND gateway_accounts.provider = ?", statusStrings(statuses), provider).
		Order("charges.created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&charges).Error; err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *ChargeRepo) EventsFor(ctx context.Context, chargeID int64) ([]domain.ChargeEvent, error) {
	var events []domain.ChargeEvent
	err := r.conn(ctx).
		Where("charge_id = ?", chargeID).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func statusStrings(statuses []domain.ChargeStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
