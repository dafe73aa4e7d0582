package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	traceHeader  = "X-Trace-Id"
	traceCtxKey  = "trace_id"
	panicMessage = "an unexpected error occurred"
)

// TraceID propagates the caller's trace id or mints one, so gateway calls
// and capture queue work triggered by a request share a correlation id.
func TraceID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		traceID := c.Request().Header.Get(traceHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Response().Header().Set(traceHeader, traceID)
		c.Set(traceCtxKey, traceID)
		return next(c)
	}
}

func RequestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		log.Printf("[%s] %s %s %d %dB %s",
			c.Get(traceCtxKey),
			c.Request().Method,
			c.Request().URL.Path,
			c.Response().Status,
			c.Response().Size,
			time.Since(start),
		)
		return err
	}
}

func Recovery(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[%s] PANIC recovered: %v", c.Get(traceCtxKey), r)
				_ = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"code":     "INTERNAL_ERROR",
					"messages": []string{panicMessage},
				})
			}
		}()
		return next(c)
	}
}
