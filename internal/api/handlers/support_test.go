// Package handlers_test provides unit tests for the API handlers.
package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tradepost/deal-service/internal/api/middleware"
	"github.com/tradepost/deal-service/internal/domain/models"
	"github.com/tradepost/deal-service/internal/infrastructure/docdb/memory"
	"github.com/tradepost/deal-service/internal/pkg/clock"
	"github.com/tradepost/deal-service/internal/services/chat"
	"github.com/tradepost/deal-service/internal/services/lease"
	"github.com/tradepost/deal-service/internal/services/marketplace"
)

// noopSink discards events.
type noopSink struct{}

func (noopSink) Emit(event *models.Event) {}

// env is the wired service stack behind the handlers under test.
type env struct {
	leases lease.Manager
	chat   chat.Manager
	clk    *clock.Fake
}

func newEnv(t *testing.T) *env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	store := memory.NewClient()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	leaseMgr, err := lease.NewManager(&lease.Config{
		Store:  store.Leases(),
		Clock:  clk,
		Events: noopSink{},
	})
	require.NoError(t, err)

	chatMgr, err := chat.NewManager(&chat.Config{
		Store:  store.Sessions(),
		Clock:  clk,
		Events: noopSink{},
	})
	require.NoError(t, err)

	return &env{leases: leaseMgr, chat: chatMgr, clk: clk}
}

// asPrincipal returns a middleware that injects a verified principal,
// standing in for the marketplace identity check.
func asPrincipal(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetPrincipal(c, &marketplace.Principal{ID: userID})
		c.Next()
	}
}

// performRequest runs one request through the router.
func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON decodes a response body.
func parseJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// errorBody is the error response shape.
type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	ConflictID string `json:"conflictId"`
	Retryable  bool   `json:"retryable"`
}

func requireErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) errorBody {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
	var body errorBody
	parseJSON(t, w, &body)
	require.Equal(t, code, body.Code)
	return body
}
