// Package marketplace_test provides unit tests for the marketplace
// service client.
package marketplace_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/tradepost/deal-service/internal/domain/errors"
	"github.com/tradepost/deal-service/internal/services/marketplace"
)

func newClient(t *testing.T, handler http.HandlerFunc) marketplace.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return marketplace.NewClient(&marketplace.ClientConfig{
		BaseURL:    server.URL,
		ServiceKey: "service-key",
	})
}

func TestVerifyToken_Success(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/v1/identity/verify", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get("X-Service-Key"))
		json.NewEncoder(w).Encode(marketplace.Principal{ID: "user-1", DisplayName: "Alice"})
	})

	principal, err := client.VerifyToken(context.Background(), "token-123")

	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.ID)
	assert.Equal(t, "Alice", principal.DisplayName)
}

func TestVerifyToken_InvalidCredential(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.VerifyToken(context.Background(), "bad-token")

	assert.True(t, domainerrors.IsUnauthorized(err))
}

func TestVerifyToken_EmptyPrincipalRejected(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(marketplace.Principal{})
	})

	_, err := client.VerifyToken(context.Background(), "token-123")

	assert.True(t, domainerrors.IsUnauthorized(err))
}

func TestVerifyToken_UpstreamFailureIsRetryable(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.VerifyToken(context.Background(), "token-123")

	domainErr, ok := domainerrors.GetDomainError(err)
	require.True(t, ok)
	assert.Equal(t, domainerrors.ErrCodeServiceUnavailable, domainErr.Code)
	assert.True(t, domainErr.Retryable())
}

func TestGetProduct_Success(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/v1/products/product-1", r.URL.Path)
		json.NewEncoder(w).Encode(marketplace.Product{
			ID:       "product-1",
			Title:    "Vintage Bike",
			SellerID: "seller-1",
		})
	})

	product, err := client.GetProduct(context.Background(), "product-1")

	require.NoError(t, err)
	assert.Equal(t, "Vintage Bike", product.Title)
	assert.False(t, product.Sold)
}

func TestGetProduct_NotFound(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetProduct(context.Background(), "no-such-product")

	assert.True(t, domainerrors.IsNotFound(err))
}

func TestGetProduct_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := marketplace.NewClient(&marketplace.ClientConfig{BaseURL: server.URL})

	_, err := client.GetProduct(context.Background(), "product-1")

	domainErr, ok := domainerrors.GetDomainError(err)
	require.True(t, ok)
	assert.Equal(t, domainerrors.ErrCodeServiceUnavailable, domainErr.Code)
}
