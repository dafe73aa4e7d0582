package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/halcyonpay/charge-connector/internal/application/charges"
	"github.com/halcyonpay/charge-connector/internal/domain"
)

// TaskHandler exposes the operational jobs normally driven by a scheduler:
// the expiry sweep, provider cleanup and discrepancy reconciliation.
type TaskHandler struct {
	service *charges.Service
}

func NewTaskHandler(service *charges.Service) *TaskHandler {
	return &TaskHandler{service: service}
}

func (h *TaskHandler) SweepExpiredCharges(c echo.Context) error {
	result, err := h.service.SweepExpired(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{
		"expiry-success": result.Success,
		"expiry-failed":  result.Failed,
	})
}

func (h *TaskHandler) CleanupGatewayErrors(c echo.Context) error {
	provider := c.QueryParam("provider")
	if provider == "" {
		return domain.ErrInvalidChargeRequest([]string{"provider query parameter is required"})
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return domain.ErrInvalidChargeRequest([]string{"limit must be a positive integer"})
		}
		limit = parsed
	}

	result, err := h.service.CleanupGatewayErrors(c.Request().Context(), provider, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{
		"cleanup-success": result.Success,
		"cleanup-failed":  result.Failed,
	})
}

type discrepancyRequest struct {
	ChargeIDs []string `json:"charge_ids"`
}

func (h *TaskHandler) ReportDiscrepancies(c echo.Context) error {
	ids, err := bindDiscrepancyIDs(c)
	if err != nil {
		return err
	}
	records, err := h.service.ReportDiscrepancies(c.Request().Context(), ids)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

func (h *TaskHandler) ResolveDiscrepancies(c echo.Context) error {
	ids, err := bindDiscrepancyIDs(c)
	if err != nil {
		return err
	}
	records, err := h.service.ResolveDiscrepancies(c.Request().Context(), ids)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

func bindDiscrepancyIDs(c echo.Context) ([]string, error) {
	var req discrepancyRequest
	if err := c.Bind(&req); err != nil || len(req.ChargeIDs) == 0 {
		return nil, domain.ErrInvalidChargeRequest([]string{"charge_ids must not be empty"})
	}
	return req.ChargeIDs, nil
}
