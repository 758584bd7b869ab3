// Package middleware_test provides unit tests for the API middleware.
package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepost/deal-service/internal/api/middleware"
	domainerrors "github.com/tradepost/deal-service/internal/domain/errors"
	"github.com/tradepost/deal-service/internal/services/marketplace"
)

// fakeIdentity resolves a fixed set of tokens.
type fakeIdentity struct {
	tokens map[string]*marketplace.Principal
}

func (f *fakeIdentity) VerifyToken(ctx context.Context, token string) (*marketplace.Principal, error) {
	p, ok := f.tokens[token]
	if !ok {
		return nil, domainerrors.NewUnauthorizedError("invalid credential")
	}
	return p, nil
}

func (f *fakeIdentity) GetProduct(ctx context.Context, productID string) (*marketplace.Product, error) {
	return nil, domainerrors.NewNotFoundError("product", productID)
}

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	identity := &fakeIdentity{tokens: map[string]*marketplace.Principal{
		"good-token": {ID: "user-1", DisplayName: "Alice"},
	}}
	authMw := middleware.NewAuthMiddleware(identity)

	router := gin.New()
	router.GET("/whoami", authMw.Authenticate(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": middleware.GetPrincipalID(c)})
	})
	return router
}

func doGet(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthenticate_ValidToken(t *testing.T) {
	router := setupAuthRouter(t)

	w := doGet(router, "Bearer good-token")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	router := setupAuthRouter(t)

	w := doGet(router, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	router := setupAuthRouter(t)

	assert.Equal(t, http.StatusUnauthorized, doGet(router, "good-token").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(router, "Basic good-token").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(router, "Bearer ").Code)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	router := setupAuthRouter(t)

	w := doGet(router, "Bearer bad-token")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetPrincipal_EmptyWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, middleware.GetPrincipal(c))
	assert.Empty(t, middleware.GetPrincipalID(c))
}
