package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/halcyonpay/charge-connector/internal/domain"
	"github.com/shopspring/decimal"
)

const smartpayDefaultURL = "https://pal-live.adyen.com/pal/servlet/Payment/v68"

// SmartpayClient talks JSON to the Smartpay payment API. Smartpay's
// resultCode vocabulary is normalized through smartpayResult.
type SmartpayClient struct {
	httpClient *http.Client
}

func NewSmartpayClient(httpClient *http.Client) *SmartpayClient {
	return &SmartpayClient{httpClient: httpClient}
}

func (s *SmartpayClient) ProviderName() string {
	return ProviderSmartpay
}

type smartpayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type smartpayPaymentRequest struct {
	MerchantAccount string         `json:"merchantAccount"`
	Reference       string         `json:"reference"`
	Amount          smartpayAmount `json:"amount"`
	CardNumber      string         `json:"cardNumber,omitempty"`
	ExpiryDate      string         `json:"expiryDate,omitempty"`
	HolderName      string         `json:"holderName,omitempty"`
	OriginalRef     string         `json:"originalReference,omitempty"`
}

type smartpayPaymentResponse struct {
	PspReference  string `json:"pspReference"`
	ResultCode    string `json:"resultCode"`
	RefusalReason string `json:"refusalReason"`
}

var smartpayResult = map[string]domain.GatewayResultCode{
	"Authorised":         domain.GatewayResultSuccess,
	"[capture-received]": domain.GatewayResultSuccess,
	"[cancel-received]":  domain.GatewayResultSuccess,
	"[refund-received]":  domain.GatewayResultSuccess,
	"Refused":            domain.GatewayResultDeclined,
	"RedirectShopper":    domain.GatewayResult3DSRequired,
	"Cancelled":          domain.GatewayResultError,
	"Error":              domain.GatewayResultError,
}

// formatMinorUnits renders a minor-unit amount as a two-exponent decimal
// string, e.g. 1050 -> "10.50".
func formatMinorUnits(amount int64) string {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func (s *SmartpayClient) Authorise(ctx context.Context, req domain.AuthorisationRequest) (*domain.GatewayOperationOutcome, error) {
	payload := smartpayPaymentRequest{
		MerchantAccount: req.Credentials["merchant_account"],
		Reference:       req.Charge.ExternalID,
		Amount:          smartpayAmount{Value: formatMinorUnits(req.Charge.Amount), Currency: "GBP"},
		CardNumber:      req.Card.CardNumber,
		ExpiryDate:      req.Card.ExpiryDate,
		HolderName:      req.Card.CardholderName,
	}
	return s.exchange(ctx, req.Credentials, "/authorise", payload)
}

func (s *SmartpayClient) Capture(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	payload := smartpayPaymentRequest{
		MerchantAccount: credentials["merchant_account"],
		Amount:          smartpayAmount{Value: formatMinorUnits(charge.Amount), Currency: "GBP"},
		OriginalRef:     charge.GatewayTransactionID,
	}
	return s.exchange(ctx, credentials, "/capture", payload)
}

func (s *SmartpayClient) Cancel(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	payload := smartpayPaymentRequest{
		MerchantAccount: credentials["merchant_account"],
		OriginalRef:     charge.GatewayTransactionID,
	}
	return s.exchange(ctx, credentials, "/cancel", payload)
}

func (s *SmartpayClient) Refund(ctx context.Context, charge *domain.Charge, credentials map[string]string, amount int64) (*domain.GatewayOperationOutcome, error) {
	payload := smartpayPaymentRequest{
		MerchantAccount: credentials["merchant_account"],
		Amount:          smartpayAmount{Value: formatMinorUnits(amount), Currency: "GBP"},
		OriginalRef:     charge.GatewayTransactionID,
	}
	return s.exchange(ctx, credentials, "/refund", payload)
}

func (s *SmartpayClient) Query(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	payload := smartpayPaymentRequest{
		MerchantAccount: credentials["merchant_account"],
		OriginalRef:     charge.GatewayTransactionID,
	}
	return s.exchange(ctx, credentials, "/status", payload)
}

func (s *SmartpayClient) exchange(ctx context.Context, credentials map[string]string, path string, payload smartpayPaymentRequest) (*domain.GatewayOperationOutcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.ErrInternal(fmt.Sprintf("encoding smartpay request: %v", err))
	}

	base := credentials["url"]
	if base == "" {
		base = smartpayDefaultURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return nil, domain.ErrInternal(fmt.Sprintf("building smartpay request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(credentials["username"], credentials["password"])

	_, raw, err := send(s.httpClient, httpReq, ProviderSmartpay)
	if err != nil {
		return nil, err
	}

	var resp smartpayPaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.ErrGatewayConnection(ProviderSmartpay, err)
	}

	result, ok := smartpayResult[resp.ResultCode]
	if !ok {
		result = domain.GatewayResultUnknown
	}
	return &domain.GatewayOperationOutcome{
		Result:         result,
		TransactionID:  resp.PspReference,
		ProviderStatus: resp.ResultCode,
		RawResponse:    string(raw),
	}, nil
}
