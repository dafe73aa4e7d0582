package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoke(t *testing.T, mw echo.MiddlewareFunc, req *http.Request, next echo.HandlerFunc) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	assert.NotPanics(t, func() {
		_ = mw(next)(c)
	})
	return rec, c
}

func ok(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestTraceID_UsesProvidedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-Id", "my-trace-123")

	rec, c := invoke(t, TraceID, req, ok)

	assert.Equal(t, "my-trace-123", rec.Header().Get("X-Trace-Id"))
	assert.Equal(t, "my-trace-123", c.Get("trace_id"))
}

func TestTraceID_GeneratesWhenMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec, _ := invoke(t, TraceID, req, ok)

	traceID := rec.Header().Get("X-Trace-Id")
	assert.NotEmpty(t, traceID)
	assert.Len(t, traceID, 36)
}

func TestRequestLogger_CallsNext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	called := false
	invoke(t, RequestLogger, req, func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	assert.True(t, called)
}

func TestRecovery_CatchesPanicWithErrorBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)

	rec, _ := invoke(t, Recovery, req, func(c echo.Context) error {
		panic("something went wrong")
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
}
