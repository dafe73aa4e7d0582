package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/halcyonpay/charge-connector/internal/application/charges"
	"github.com/halcyonpay/charge-connector/internal/domain"
)

type ChargeHandler struct {
	service *charges.Service
}

func NewChargeHandler(service *charges.Service) *ChargeHandler {
	return &ChargeHandler{service: service}
}

// chargeResponse is the external view of a charge. Status is reported in the
// public vocabulary, not the internal state machine's.
type chargeResponse struct {
	ChargeID             string              `json:"charge_id"`
	Amount               int64               `json:"amount"`
	Status               string              `json:"status"`
	Reference            string              `json:"reference"`
	Description          string              `json:"description,omitempty"`
	ReturnURL            string              `json:"return_url,omitempty"`
	Email                string              `json:"email,omitempty"`
	Language             string              `json:"language,omitempty"`
	AuthorisationMode    string              `json:"authorisation_mode"`
	DelayedCapture       bool                `json:"delayed_capture"`
	GatewayTransactionID string              `json:"gateway_transaction_id,omitempty"`
	CardDetails          *domain.CardDetails `json:"card_details,omitempty"`
	CreatedAt            string              `json:"created_date"`
}

func toChargeResponse(charge *domain.Charge) chargeResponse {
	resp := chargeResponse{
		ChargeID:             charge.ExternalID,
		Amount:               charge.Amount,
		Status:               charge.Status.ExternalStatus(),
		Reference:            charge.Reference,
		Description:          charge.Description,
		ReturnURL:            charge.ReturnURL,
		Email:                charge.Email,
		Language:             charge.Language,
		AuthorisationMode:    string(charge.AuthorisationMode),
		DelayedCapture:       charge.DelayedCapture,
		GatewayTransactionID: charge.GatewayTransactionID,
		CreatedAt:            charge.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if charge.CardDetails != nil && charge.CardDetails.MaskedPAN != "" {
		resp.CardDetails = charge.CardDetails
	}
	return resp
}

type chargeEventResponse struct {
	Status    string `json:"status"`
	UpdatedAt string `json:"updated"`
}

func (h *ChargeHandler) CreateCharge(c echo.Context) error {
	accountID, err := strconv.ParseInt(c.Param("accountId"), 10, 64)
	if err != nil {
		return domain.ErrInvalidChargeRequest([]string{"account id must be numeric"})
	}

	var req domain.ChargeRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidChargeRequest([]string{"invalid request body"})
	}

	charge, err := h.service.CreateCharge(c.Request().Context(), accountID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toChargeResponse(charge))
}

func (h *ChargeHandler) GetCharge(c echo.Context) error {
	charge, err := h.service.GetCharge(c.Request().Context(), c.Param("chargeId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toChargeResponse(charge))
}

func (h *ChargeHandler) GetChargeEvents(c echo.Context) error {
	events, err := h.service.GetChargeEvents(c.Request().Context(), c.Param("chargeId"))
	if err != nil {
		return err
	}

	out := make([]chargeEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, chargeEventResponse{
			Status:    event.Status.ExternalStatus(),
			UpdatedAt: event.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"charge_id": c.Param("chargeId"),
		"events":    out,
	})
}

type statusUpdateRequest struct {
	NewStatus string `json:"new_status"`
}

// UpdateStatus accepts the one externally drivable progression: a payment
// page reporting that the payer has reached card entry.
func (h *ChargeHandler) UpdateStatus(c echo.Context) error {
	var req statusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidChargeRequest([]string{"invalid request body"})
	}
	if req.NewStatus != string(domain.StatusEnteringCardDetails) {
		return domain.ErrInvalidChargeRequest([]string{"new_status must be ENTERING_CARD_DETAILS"})
	}

	charge, err := h.service.ProgressToCardDetails(c.Request().Context(), c.Param("chargeId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toChargeResponse(charge))
}

func (h *ChargeHandler) Authorise(c echo.Context) error {
	var card domain.AuthCardDetails
	if err := c.Bind(&card); err != nil {
		return domain.ErrInvalidChargeRequest([]string{"invalid request body"})
	}
	if card.CardNumber == "" || card.CardholderName == "" || card.ExpiryDate == "" {
		return domain.ErrInvalidChargeRequest([]string{"card_number, cardholder_name and expiry_date are required"})
	}

	charge, err := h.service.Authorise(c.Request().Context(), c.Param("chargeId"), card)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toChargeResponse(charge))
}

func (h *ChargeHandler) ApproveCapture(c echo.Context) error {
	charge, err := h.service.ApproveCapture(c.Request().Context(), c.Param("chargeId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, toChargeResponse(charge))
}

func (h *ChargeHandler) Cancel(c echo.Context) error {
	charge, err := h.service.Cancel(c.Request().Context(), c.Param("chargeId"), false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toChargeResponse(charge))
}

type refundRequest struct {
	Amount int64 `json:"amount"`
}

func (h *ChargeHandler) Refund(c echo.Context) error {
	var req refundRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidChargeRequest([]string{"invalid request body"})
	}

	outcome, err := h.service.Refund(c.Request().Context(), c.Param("chargeId"), req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"charge_id": c.Param("chargeId"),
		"amount":    req.Amount,
		"status":    "success",
		"reference": outcome.TransactionID,
	})
}
