package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/halcyonpay/charge-connector/internal/domain"
)

// SandboxClient is a deterministic in-process provider used by test and demo
// accounts. Outcomes are driven by card-number and cardholder-name
// conventions, never by remote calls.
type SandboxClient struct{}

func NewSandboxClient() *SandboxClient {
	return &SandboxClient{}
}

func (s *SandboxClient) ProviderName() string {
	return ProviderSandbox
}

func (s *SandboxClient) Authorise(_ context.Context, req domain.AuthorisationRequest) (*domain.GatewayOperationOutcome, error) {
	result, providerStatus := resolveOutcome(req.Card.CardNumber, req.Card.CardholderName)

	outcome := &domain.GatewayOperationOutcome{
		Result:         result,
		ProviderStatus: providerStatus,
		RawResponse:    fmt.Sprintf(`{"provider":"sandbox","status":"%s"}`, providerStatus),
	}
	if result == domain.GatewayResultSuccess || result == domain.GatewayResult3DSRequired {
		outcome.TransactionID = uuid.New().String()
	}
	return outcome, nil
}

func resolveOutcome(cardNumber, cardholderName string) (domain.GatewayResultCode, string) {
	switch strings.ToUpper(strings.TrimSpace(cardholderName)) {
	case "DECLINED", "REFUSED":
		return domain.GatewayResultDeclined, "REFUSED"
	case "ERROR":
		return domain.GatewayResultError, "ERROR"
	}

	switch cardNumber {
	case "4000000000000002":
		return domain.GatewayResultDeclined, "insufficient_funds"
	case "4000000000000069":
		return domain.GatewayResultDeclined, "expired_card"
	case "4000000000000119":
		return domain.GatewayResultError, "processing_error"
	case "4000000000000259":
		return domain.GatewayResult3DSRequired, "3ds_required"
	default:
		return domain.GatewayResultSuccess, "AUTHORISED"
	}
}

func (s *SandboxClient) Capture(_ context.Context, charge *domain.Charge, _ map[string]string) (*domain.GatewayOperationOutcome, error) {
	return &domain.GatewayOperationOutcome{
		Result:         domain.GatewayResultSuccess,
		TransactionID:  charge.GatewayTransactionID,
		ProviderStatus: "CAPTURED",
		RawResponse:    `{"provider":"sandbox","status":"CAPTURED"}`,
	}, nil
}

func (s *SandboxClient) Cancel(_ context.Context, charge *domain.Charge, _ map[string]string) (*domain.GatewayOperationOutcome, error) {
	return &domain.GatewayOperationOutcome{
		Result:         domain.GatewayResultSuccess,
		TransactionID:  charge.GatewayTransactionID,
		ProviderStatus: "CANCELLED",
		RawResponse:    `{"provider":"sandbox","status":"CANCELLED"}`,
	}, nil
}

func (s *SandboxClient) Refund(_ context.Context, charge *domain.Charge, _ map[string]string, _ int64) (*domain.GatewayOperationOutcome, error) {
	return &domain.GatewayOperationOutcome{
		Result:         domain.GatewayResultSuccess,
		TransactionID:  charge.GatewayTransactionID,
		ProviderStatus: "REFUNDED",
		RawResponse:    `{"provider":"sandbox","status":"REFUNDED"}`,
	}, nil
}

// Query reports a live authorisation whenever a transaction id was handed
// out, which is what the expiry and cleanup sweepers need from a stub.
func (s *SandboxClient) Query(_ context.Context, charge *domain.Charge, _ map[string]string) (*domain.GatewayOperationOutcome, error) {
	if charge.GatewayTransactionID == "" {
		return &domain.GatewayOperationOutcome{
			Result:         domain.GatewayResultUnknown,
			ProviderStatus: "NOT_FOUND",
			RawResponse:    `{"provider":"sandbox","status":"NOT_FOUND"}`,
		}, nil
	}
	return &domain.GatewayOperationOutcome{
		Result:         domain.GatewayResultSuccess,
		TransactionID:  charge.GatewayTransactionID,
		ProviderStatus: "AUTHORISED",
		RawResponse:    `{"provider":"sandbox","status":"AUTHORISED"}`,
	}, nil
}
