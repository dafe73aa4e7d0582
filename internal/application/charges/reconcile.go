package charges

import (
	"context"
	"log"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

// DiscrepancyRecord compares the connector's view of a charge with the
// gateway's authoritative one, in both raw and externalized vocabularies.
type DiscrepancyRecord struct {
	ChargeID               string              `json:"charge_id"`
	InternalStatus         domain.ChargeStatus `json:"internal_status"`
	GatewayStatus          string              `json:"gateway_status"`
	RawGatewayResponse     string              `json:"raw_gateway_response,omitempty"`
	InternalExternalStatus string              `json:"internal_external_status"`
	GatewayExternalStatus  string              `json:"gateway_external_status"`
	Processed              bool                `json:"processed"`
}

// ReportDiscrepancies queries the gateway for each supplied charge and
// reports the comparison. An unknown charge id fails the whole batch.
func (s *Service) ReportDiscrepancies(ctx context.Context, externalIDs []string) ([]DiscrepancyRecord, error) {
	return s.reconcile(ctx, externalIDs, false)
}

// ResolveDiscrepancies reports like ReportDiscrepancies but also remediates:
// where the connector considers the charge dead and the gateway still holds a
// live authorisation, the authorisation is cancelled gateway-side.
func (s *Service) ResolveDiscrepancies(ctx context.Context, externalIDs []string) ([]DiscrepancyRecord, error) {
	return s.reconcile(ctx, externalIDs, true)
}

func (s *Service) reconcile(ctx context.Context, externalIDs []string, resolve bool) ([]DiscrepancyRecord, error) {
	// Fail fast before any gateway traffic: one unknown id aborts the batch.
	charges := make([]*domain.Charge, 0, len(externalIDs))
	for _, id := range externalIDs {
		charge, err := s.loadCharge(ctx, id)
		if err != nil {
			return nil, err
		}
		charges = append(charges, charge)
	}

	records := make([]DiscrepancyRecord, 0, len(charges))
	for _, charge := range charges {
		record := DiscrepancyRecord{
			ChargeID:               charge.ExternalID,
			InternalStatus:         charge.Status,
			InternalExternalStatus: charge.Status.ExternalStatus(),
		}

		client, credentials, err := s.gatewayFor(ctx, charge)
		if err != nil {
			record.GatewayStatus = "unavailable"
			record.GatewayExternalStatus = "unknown"
			records = append(records, record)
			continue
		}

		query, err := client.Query(ctx, charge, credentials)
		if err != nil {
			record.GatewayStatus = "unavailable"
			record.GatewayExternalStatus = "unknown"
			records = append(records, record)
			continue
		}

		record.GatewayStatus = query.ProviderStatus
		record.RawGatewayResponse = query.RawResponse
		record.GatewayExternalStatus = externalizeGatewayResult(query.Result)

		if resolve && s.shouldCancelDiscrepancy(charge, query) {
			cancel, err := client.Cancel(ctx, charge, credentials)
			if err == nil && cancel.Succeeded() {
				record.Processed = true
			} else {
				log.Printf("reconcile: gateway cancel failed for charge %s", charge.ExternalID)
			}
		}

		records = append(records, record)
	}
	return records, nil
}

// shouldCancelDiscrepancy spots the dangerous mismatch: the connector thinks
// the charge is finished while the gateway still holds a live authorisation.
func (s *Service) shouldCancelDiscrepancy(charge *domain.Charge, query *domain.GatewayOperationOutcome) bool {
	if query.Result != domain.GatewayResultSuccess {
		return false
	}
	switch charge.Status.ExternalStatus() {
	case "expired", "cancelled", "error", "declined", "timedout":
		return true
	default:
		return false
	}
}

func externalizeGatewayResult(result domain.GatewayResultCode) string {
	switch result {
	case domain.GatewayResultSuccess:
		return "submitted"
	case domain.GatewayResultDeclined:
		return "declined"
	case domain.GatewayResultError:
		return "error"
	case domain.GatewayResult3DSRequired:
		return "started"
	default:
		return "unknown"
	}
}
