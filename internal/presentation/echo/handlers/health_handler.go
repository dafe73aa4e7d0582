package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check reports liveness and database reachability. An unreachable
// database answers 503 so probes take the instance out of rotation.
func (h *HealthHandler) Check(c echo.Context) error {
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request().Context())
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":   "UNAVAILABLE",
				"database": "down",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "OK",
		"database": "up",
	})
}
