package charges

import (
	"context"
	"log"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

// SweepResult is what a sweeper run reports back: how many charges it
// resolved and how many it could not.
type SweepResult struct {
	Success int
	Failed  int
}

// SweepExpired cancels charges that sat too long before capture. Charges that
// never reached the gateway are expired directly; for the rest the gateway is
// asked first, and a live authorisation is cancelled gateway-side before the
// charge is marked expired. A failed gateway cancel leaves the charge in
// EXPIRE_CANCEL_FAILED rather than silently expiring a charge the provider
// still considers live.
func (s *Service) SweepExpired(ctx context.Context) (SweepResult, error) {
	charges, err := s.store.ListByStatusOlderThan(ctx, domain.ExpirableStatuses(), s.expiryThreshold, 0)
	if err != nil {
		return SweepResult{}, domain.ErrInternal("failed to list expirable charges")
	}

	var result SweepResult
	for i := range charges {
		if s.expireOne(ctx, &charges[i]) {
			result.Success++
		} else {
			result.Failed++
		}
	}

	log.Printf("expiry sweep finished: %d expired, %d failed", result.Success, result.Failed)
	return result, nil
}

func (s *Service) expireOne(ctx context.Context, charge *domain.Charge) bool {
	expected := []domain.ChargeStatus{charge.Status}

	if !charge.Status.GatewayMayHoldAuthorisation() {
		return s.store.CompareAndSetStatus(ctx, charge.ID, expected, domain.StatusExpired) == nil
	}

	client, credentials, err := s.gatewayFor(ctx, charge)
	if err != nil {
		log.Printf("expiry: gateway resolution failed for charge %s: %v", charge.ExternalID, err)
		return false
	}

	query, err := client.Query(ctx, charge, credentials)
	if err != nil {
		log.Printf("expiry: gateway query failed for charge %s: %v", charge.ExternalID, err)
		return false
	}

	if query.Result == domain.GatewayResultSuccess {
		cancel, err := client.Cancel(ctx, charge, credentials)
		if err != nil || !cancel.Succeeded() {
			log.Printf("expiry: gateway cancel failed for charge %s", charge.ExternalID)
			_ = s.store.CompareAndSetStatus(ctx, charge.ID, expected, domain.StatusExpireCancelFailed)
			return false
		}
	}

	return s.store.CompareAndSetStatus(ctx, charge.ID, expected, domain.StatusExpired) == nil
}
