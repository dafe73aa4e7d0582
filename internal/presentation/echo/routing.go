package echo

import (
	echofw "github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/halcyonpay/charge-connector/internal/application/charges"
	"github.com/halcyonpay/charge-connector/internal/presentation/echo/handlers"
	"github.com/halcyonpay/charge-connector/internal/presentation/echo/middleware"
)

func ConfigureRoutes(e *echofw.Echo, service *charges.Service, db *gorm.DB) {
	e.Use(middleware.Recovery)
	e.Use(middleware.TraceID)
	e.Use(middleware.RequestLogger)

	healthHandler := handlers.NewHealthHandler(db)
	e.GET("/health", healthHandler.Check)

	chargeHandler := handlers.NewChargeHandler(service)
	v1 := e.Group("/v1")

	account := v1.Group("/api/accounts/:accountId")
	account.POST("/charges", chargeHandler.CreateCharge)
	account.GET("/charges/:chargeId", chargeHandler.GetCharge)
	account.GET("/charges/:chargeId/events", chargeHandler.GetChargeEvents)
	account.PUT("/charges/:chargeId/status", chargeHandler.UpdateStatus)
	account.POST("/charges/:chargeId/cards", chargeHandler.Authorise)
	account.POST("/charges/:chargeId/capture", chargeHandler.ApproveCapture)
	account.POST("/charges/:chargeId/cancel", chargeHandler.Cancel)
	account.POST("/charges/:chargeId/refunds", chargeHandler.Refund)

	taskHandler := handlers.NewTaskHandler(service)
	v1.POST("/tasks/expired-charges-sweep", taskHandler.SweepExpiredCharges)
	v1.POST("/tasks/gateway-cleanup", taskHandler.CleanupGatewayErrors)
	v1.POST("/api/discrepancies/report", taskHandler.ReportDiscrepancies)
	v1.POST("/api/discrepancies/resolve", taskHandler.ResolveDiscrepancies)
}
