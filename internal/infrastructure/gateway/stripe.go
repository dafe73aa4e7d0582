package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

const stripeDefaultURL = "https://api.stripe.com/v1"

// StripeClient drives Stripe payment intents with manual capture, bearer
// auth, form-encoded requests and JSON responses.
type StripeClient struct {
	httpClient *http.Client
}

func NewStripeClient(httpClient *http.Client) *StripeClient {
	return &StripeClient{httpClient: httpClient}
}

func (s *StripeClient) ProviderName() string {
	return ProviderStripe
}

type stripeIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var stripeResult = map[string]domain.GatewayResultCode{
	"requires_capture": domain.GatewayResultSuccess, // authorised, awaiting capture
	"succeeded":        domain.GatewayResultSuccess,
	"requires_action":  domain.GatewayResult3DSRequired,
	"canceled":         domain.GatewayResultError,
	"card_declined":    domain.GatewayResultDeclined,
}

func (s *StripeClient) Authorise(ctx context.Context, req domain.AuthorisationRequest) (*domain.GatewayOperationOutcome, error) {
	params := url.Values{
		"amount":               {fmt.Sprintf("%d", req.Charge.Amount)},
		"currency":             {"gbp"},
		"capture_method":       {"manual"},
		"confirm":              {"true"},
		"description":          {req.Charge.Description},
		"card[number]":         {req.Card.CardNumber},
		"card[exp]":            {req.Card.ExpiryDate},
		"card[cvc]":            {req.Card.CVC},
		"card[name]":           {req.Card.CardholderName},
		"metadata[charge_id]":  {req.Charge.ExternalID},
	}
	return s.exchange(ctx, req.Credentials, http.MethodPost, "/payment_intents", params)
}

func (s *StripeClient) Capture(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	path := fmt.Sprintf("/payment_intents/%s/capture", charge.GatewayTransactionID)
	return s.exchange(ctx, credentials, http.MethodPost, path, url.Values{})
}

func (s *StripeClient) Cancel(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	path := fmt.Sprintf("/payment_intents/%s/cancel", charge.GatewayTransactionID)
	return s.exchange(ctx, credentials, http.MethodPost, path, url.Values{})
}

func (s *StripeClient) Refund(ctx context.Context, charge *domain.Charge, credentials map[string]string, amount int64) (*domain.GatewayOperationOutcome, error) {
	params := url.Values{
		"payment_intent": {charge.GatewayTransactionID},
		"amount":         {fmt.Sprintf("%d", amount)},
	}
	return s.exchange(ctx, credentials, http.MethodPost, "/refunds", params)
}

func (s *StripeClient) Query(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	path := fmt.Sprintf("/payment_intents/%s", charge.GatewayTransactionID)
	return s.exchange(ctx, credentials, http.MethodGet, path, nil)
}

func (s *StripeClient) exchange(ctx context.Context, credentials map[string]string, method, path string, params url.Values) (*domain.GatewayOperationOutcome, error) {
	base := credentials["url"]
	if base == "" {
		base = stripeDefaultURL
	}

	var body *strings.Reader
	if params != nil {
		body = strings.NewReader(params.Encode())
	} else {
		body = strings.NewReader("")
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, domain.ErrInternal(fmt.Sprintf("building stripe request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+credentials["api_key"])

	statusCode, raw, err := send(s.httpClient, httpReq, ProviderStripe)
	if err != nil {
		return nil, err
	}

	var intent stripeIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, domain.ErrGatewayConnection(ProviderStripe, err)
	}

	if intent.Error != nil {
		result := domain.GatewayResultError
		if intent.Error.Code == "card_declined" || statusCode == http.StatusPaymentRequired {
			result = domain.GatewayResultDeclined
		}
		return &domain.GatewayOperationOutcome{
			Result:         result,
			ProviderStatus: intent.Error.Code,
			RawResponse:    string(raw),
		}, nil
	}

	result, ok := stripeResult[intent.Status]
	if !ok {
		result = domain.GatewayResultUnknown
	}
	return &domain.GatewayOperationOutcome{
		Result:         result,
		TransactionID:  intent.ID,
		ProviderStatus: intent.Status,
		RawResponse:    string(raw),
	}, nil
}
