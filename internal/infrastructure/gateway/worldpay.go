package gateway

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

const worldpayDefaultURL = "https://secure.worldpay.com/jsp/merchant/xml/paymentService.jsp"

// WorldpayClient speaks Worldpay's XML paymentService protocol over HTTP
// basic auth. Worldpay reports order state through the lastEvent vocabulary.
type WorldpayClient struct {
	httpClient *http.Client
}

func NewWorldpayClient(httpClient *http.Client) *WorldpayClient {
	return &WorldpayClient{httpClient: httpClient}
}

func (w *WorldpayClient) ProviderName() string {
	return ProviderWorldpay
}

type worldpayRequest struct {
	XMLName      xml.Name             `xml:"paymentService"`
	MerchantCode string               `xml:"merchantCode,attr"`
	Submit       *worldpaySubmitBody  `xml:"submit,omitempty"`
	Modify       *worldpayModifyBody  `xml:"modify,omitempty"`
	Inquiry      *worldpayInquiryBody `xml:"inquiry,omitempty"`
}

type worldpaySubmitBody struct {
	Order worldpayOrder `xml:"order"`
}

type worldpayOrder struct {
	OrderCode   string         `xml:"orderCode,attr"`
	Description string         `xml:"description"`
	Amount      worldpayAmount `xml:"amount"`
	Card        worldpayCard   `xml:"paymentDetails>CARD-SSL"`
}

type worldpayAmount struct {
	Value    int64  `xml:"value,attr"`
	Currency string `xml:"currencyCode,attr"`
	Exponent int    `xml:"exponent,attr"`
}

type worldpayCard struct {
	CardNumber string `xml:"cardNumber"`
	ExpiryDate string `xml:"expiryDate"`
	Cardholder string `xml:"cardHolderName"`
}

type worldpayModifyBody struct {
	OrderModification worldpayOrderModification `xml:"orderModification"`
}

type worldpayOrderModification struct {
	OrderCode string    `xml:"orderCode,attr"`
	Capture   *struct{} `xml:"capture,omitempty"`
	Cancel    *struct{} `xml:"cancel,omitempty"`
	Refund    *struct{} `xml:"refund,omitempty"`
}

type worldpayInquiryBody struct {
	OrderInquiry worldpayOrderInquiry `xml:"orderInquiry"`
}

type worldpayOrderInquiry struct {
	OrderCode string `xml:"orderCode,attr"`
}

type worldpayReply struct {
	XMLName xml.Name          `xml:"paymentService"`
	Reply   worldpayReplyBody `xml:"reply"`
}

type worldpayReplyBody struct {
	OrderStatus *worldpayOrderStatus `xml:"orderStatus"`
	Error       *worldpayError       `xml:"error"`
	Ok          *struct{}            `xml:"ok"`
}

type worldpayOrderStatus struct {
	OrderCode string `xml:"orderCode,attr"`
	LastEvent string `xml:"payment>lastEvent"`
}

type worldpayError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// worldpayResult maps the lastEvent vocabulary onto normalized result codes.
var worldpayResult = map[string]domain.GatewayResultCode{
	"AUTHORISED": domain.GatewayResultSuccess,
	"CAPTURED":   domain.GatewayResultSuccess,
	"SETTLED":    domain.GatewayResultSuccess,
	"REFUSED":    domain.GatewayResultDeclined,
	"CANCELLED":  domain.GatewayResultError,
	"EXPIRED":    domain.GatewayResultError,
	"ERROR":      domain.GatewayResultError,
}

func (w *WorldpayClient) Authorise(ctx context.Context, req domain.AuthorisationRequest) (*domain.GatewayOperationOutcome, error) {
	payload := worldpayRequest{
		MerchantCode: req.Credentials["merchant_code"],
		Submit: &worldpaySubmitBody{
			Order: worldpayOrder{
				OrderCode:   req.Charge.ExternalID,
				Description: req.Charge.Description,
				Amount:      worldpayAmount{Value: req.Charge.Amount, Currency: "GBP", Exponent: 2},
				Card: worldpayCard{
					CardNumber: req.Card.CardNumber,
					ExpiryDate: req.Card.ExpiryDate,
					Cardholder: req.Card.CardholderName,
				},
			},
		},
	}
	outcome, err := w.exchange(ctx, req.Credentials, payload)
	if err != nil {
		return nil, err
	}
	if outcome.Result == domain.GatewayResultSuccess && outcome.TransactionID == "" {
		outcome.TransactionID = req.Charge.ExternalID
	}
	return outcome, nil
}

func (w *WorldpayClient) Capture(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	mod := worldpayOrderModification{OrderCode: charge.GatewayTransactionID, Capture: &struct{}{}}
	return w.modify(ctx, credentials, mod)
}

func (w *WorldpayClient) Cancel(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	mod := worldpayOrderModification{OrderCode: charge.GatewayTransactionID, Cancel: &struct{}{}}
	return w.modify(ctx, credentials, mod)
}

func (w *WorldpayClient) Refund(ctx context.Context, charge *domain.Charge, credentials map[string]string, _ int64) (*domain.GatewayOperationOutcome, error) {
	mod := worldpayOrderModification{OrderCode: charge.GatewayTransactionID, Refund: &struct{}{}}
	return w.modify(ctx, credentials, mod)
}

func (w *WorldpayClient) modify(ctx context.Context, credentials map[string]string, mod worldpayOrderModification) (*domain.GatewayOperationOutcome, error) {
	payload := worldpayRequest{
		MerchantCode: credentials["merchant_code"],
		Modify:       &worldpayModifyBody{OrderModification: mod},
	}
	return w.exchange(ctx, credentials, payload)
}

func (w *WorldpayClient) Query(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	payload := worldpayRequest{
		MerchantCode: credentials["merchant_code"],
		Inquiry: &worldpayInquiryBody{
			OrderInquiry: worldpayOrderInquiry{OrderCode: charge.GatewayTransactionID},
		},
	}
	return w.exchange(ctx, credentials, payload)
}

func (w *WorldpayClient) exchange(ctx context.Context, credentials map[string]string, payload worldpayRequest) (*domain.GatewayOperationOutcome, error) {
	body, err := xml.Marshal(payload)
	if err != nil {
		return nil, domain.ErrInternal(fmt.Sprintf("encoding worldpay request: %v", err))
	}

	url := credentials["url"]
	if url == "" {
		url = worldpayDefaultURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.ErrInternal(fmt.Sprintf("building worldpay request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "text/xml")
	httpReq.SetBasicAuth(credentials["username"], credentials["password"])

	_, raw, err := send(w.httpClient, httpReq, ProviderWorldpay)
	if err != nil {
		return nil, err
	}

	var reply worldpayReply
	if err := xml.Unmarshal(raw, &reply); err != nil {
		return nil, domain.ErrGatewayConnection(ProviderWorldpay, err)
	}

	if reply.Reply.Error != nil {
		return &domain.GatewayOperationOutcome{
			Result:         domain.GatewayResultError,
			ProviderStatus: reply.Reply.Error.Code,
			RawResponse:    string(raw),
		}, nil
	}

	// Modifications reply with a bare <ok/> rather than an order status.
	if reply.Reply.OrderStatus == nil {
		result := domain.GatewayResultUnknown
		if reply.Reply.Ok != nil {
			result = domain.GatewayResultSuccess
		}
		return &domain.GatewayOperationOutcome{
			Result:      result,
			RawResponse: string(raw),
		}, nil
	}

	status := reply.Reply.OrderStatus
	result, ok := worldpayResult[status.LastEvent]
	if !ok {
		result = domain.GatewayResultUnknown
	}
	return &domain.GatewayOperationOutcome{
		Result:         result,
		TransactionID:  status.OrderCode,
		ProviderStatus: status.LastEvent,
		RawResponse:    string(raw),
	}, nil
}
