package charges

import (
	"context"
	"log"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

// CleanupGatewayErrors resolves charges stuck in ambiguous authorisation
// error states for one provider by asking the gateway what really happened,
// then cancelling defensively. The run is bounded by the caller-supplied
// limit.
func (s *Service) CleanupGatewayErrors(ctx context.Context, provider string, limit int) (SweepResult, error) {
	if _, err := s.gateways.Resolve(provider); err != nil {
		return SweepResult{}, err
	}

	charges, err := s.store.ListByStatusAndProvider(ctx, domain.CleanupStatuses(), provider, limit)
	if err != nil {
		return SweepResult{}, domain.ErrInternal("failed to list charges for cleanup")
	}

	var result SweepResult
	for i := range charges {
		if s.cleanupOne(ctx, &charges[i]) {
			result.Success++
		} else {
			result.Failed++
		}
	}

	log.Printf("gateway cleanup for %s finished: %d cleaned, %d failed", provider, result.Success, result.Failed)
	return result, nil
}

func (s *Service) cleanupOne(ctx context.Context, charge *domain.Charge) bool {
	client, credentials, err := s.gatewayFor(ctx, charge)
	if err != nil {
		log.Printf("cleanup: gateway resolution failed for charge %s: %v", charge.ExternalID, err)
		return false
	}

	query, err := client.Query(ctx, charge, credentials)
	if err != nil {
		log.Printf("cleanup: gateway query failed for charge %s: %v", charge.ExternalID, err)
		return false
	}

	// Cancel whenever the gateway might still hold the authorisation. A
	// charge the gateway never saw needs no remote cancel.
	if query.Result == domain.GatewayResultSuccess || charge.GatewayTransactionID != "" {
		cancel, err := client.Cancel(ctx, charge, credentials)
		if err != nil || !cancel.Succeeded() {
			log.Printf("cleanup: gateway cancel failed for charge %s", charge.ExternalID)
			return false
		}
	}

	err = s.store.CompareAndSetStatus(ctx, charge.ID,
		[]domain.ChargeStatus{charge.Status}, domain.StatusAuthorisationErrCancelled)
	if err != nil {
		log.Printf("cleanup: transition lost for charge %s: %v", charge.ExternalID, err)
		return false
	}
	return true
}
