package gateway

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

const epdqDefaultURL = "https://payments.epdq.co.uk/ncol/prod"

// EpdqClient speaks ePDQ's form-encoded DirectLink API. Every request is
// signed with a SHA-512 digest over the sorted parameters plus the SHA-IN
// passphrase; ePDQ reports state through a numeric STATUS vocabulary.
type EpdqClient struct {
	httpClient *http.Client
}

func NewEpdqClient(httpClient *http.Client) *EpdqClient {
	return &EpdqClient{httpClient: httpClient}
}

func (e *EpdqClient) ProviderName() string {
	return ProviderEpdq
}

// epdqResult maps the numeric STATUS vocabulary onto normalized result codes.
var epdqResult = map[string]domain.GatewayResultCode{
	"5":  domain.GatewayResultSuccess, // authorised
	"9":  domain.GatewayResultSuccess, // payment captured
	"8":  domain.GatewayResultSuccess, // refund
	"6":  domain.GatewayResultSuccess, // authorised and cancelled
	"1":  domain.GatewayResultError,   // cancelled by customer
	"2":  domain.GatewayResultDeclined,
	"93": domain.GatewayResultDeclined, // refund refused
	"0":  domain.GatewayResultUnknown,  // invalid or incomplete
}

func (e *EpdqClient) Authorise(ctx context.Context, req domain.AuthorisationRequest) (*domain.GatewayOperationOutcome, error) {
	params := url.Values{
		"PSPID":     {req.Credentials["pspid"]},
		"ORDERID":   {req.Charge.ExternalID},
		"AMOUNT":    {fmt.Sprintf("%d", req.Charge.Amount)},
		"CURRENCY":  {"GBP"},
		"CARDNO":    {req.Card.CardNumber},
		"ED":        {req.Card.ExpiryDate},
		"CN":        {req.Card.CardholderName},
		"CVC":       {req.Card.CVC},
		"OPERATION": {"RES"},
	}
	return e.exchange(ctx, req.Credentials, "/orderdirect.asp", params)
}

func (e *EpdqClient) Capture(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	return e.maintenance(ctx, charge, credentials, "SAS", charge.Amount)
}

func (e *EpdqClient) Cancel(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	return e.maintenance(ctx, charge, credentials, "DES", 0)
}

func (e *EpdqClient) Refund(ctx context.Context, charge *domain.Charge, credentials map[string]string, amount int64) (*domain.GatewayOperationOutcome, error) {
	return e.maintenance(ctx, charge, credentials, "RFD", amount)
}

func (e *EpdqClient) maintenance(ctx context.Context, charge *domain.Charge, credentials map[string]string, operation string, amount int64) (*domain.GatewayOperationOutcome, error) {
	params := url.Values{
		"PSPID":     {credentials["pspid"]},
		"PAYID":     {charge.GatewayTransactionID},
		"OPERATION": {operation},
	}
	if amount > 0 {
		params.Set("AMOUNT", fmt.Sprintf("%d", amount))
	}
	return e.exchange(ctx, credentials, "/maintenancedirect.asp", params)
}

func (e *EpdqClient) Query(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	params := url.Values{
		"PSPID": {credentials["pspid"]},
		"PAYID": {charge.GatewayTransactionID},
	}
	return e.exchange(ctx, credentials, "/querydirect.asp", params)
}

// shaSign computes the SHA-IN digest ePDQ requires: parameters sorted by
// name, each suffixed with the passphrase, concatenated and hashed.
func shaSign(params url.Values, passphrase string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := params.Get(k)
		if v == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("%s=%s%s", k, v, passphrase))
	}
	sum := sha512.Sum512([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func (e *EpdqClient) exchange(ctx context.Context, credentials map[string]string, path string, params url.Values) (*domain.GatewayOperationOutcome, error) {
	params.Set("USERID", credentials["userid"])
	params.Set("PSWD", credentials["password"])
	params.Set("SHASIGN", shaSign(params, credentials["sha_in_passphrase"]))

	base := credentials["url"]
	if base == "" {
		base = epdqDefaultURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, domain.ErrInternal(fmt.Sprintf("building epdq request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, raw, err := send(e.httpClient, httpReq, ProviderEpdq)
	if err != nil {
		return nil, err
	}

	var resp struct {
		PayID  string `json:"PAYID"`
		Status string `json:"STATUS"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.ErrGatewayConnection(ProviderEpdq, err)
	}

	result, ok := epdqResult[resp.Status]
	if !ok {
		result = domain.GatewayResultUnknown
	}
	return &domain.GatewayOperationOutcome{
		Result:         result,
		TransactionID:  resp.PayID,
		ProviderStatus: resp.Status,
		RawResponse:    string(raw),
	}, nil
}
