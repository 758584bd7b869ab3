// Package marketplace provides the marketplace core service client.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	domainerrors "github.com/tradepost/deal-service/internal/domain/errors"
)

// Client defines the interface for the marketplace service. Identity
// issuance and the product catalog live there; this service only
// consumes them at the boundary.
type Client interface {
	// VerifyToken resolves a credential to a principal.
	VerifyToken(ctx context.Context, token string) (*Principal, error)

	// GetProduct resolves a product id to confirm existence.
	GetProduct(ctx context.Context, productID string) (*Product, error)
}

// client implements the Client interface over HTTP.
type client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// ClientConfig holds the configuration for the marketplace client.
type ClientConfig struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
}

// NewClient creates a new marketplace service client.
func NewClient(cfg *ClientConfig) Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &client{
		baseURL:    cfg.BaseURL,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// VerifyToken resolves a credential to a principal via the identity
// endpoint. An invalid or expired credential is Unauthorized; an
// unreachable marketplace service is a transient failure.
func (c *client) VerifyToken(ctx context.Context, token string) (*Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/internal/v1/identity/verify", nil)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to build identity request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Service-Key", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError("identity verification", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var principal Principal
		if err := json.NewDecoder(resp.Body).Decode(&principal); err != nil {
			return nil, domainerrors.NewInternalError("failed to decode principal", err)
		}
		if principal.ID == "" {
			return nil, domainerrors.NewUnauthorizedError("credential resolved to no principal")
		}
		return &principal, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domainerrors.NewUnauthorizedError("invalid credential")
	default:
		return nil, domainerrors.NewServiceUnavailableError("marketplace service",
			fmt.Errorf("identity verify returned status %d", resp.StatusCode))
	}
}

// GetProduct resolves a product id against the catalog.
func (c *client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/internal/v1/products/"+productID, nil)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to build catalog request", err)
	}
	req.Header.Set("X-Service-Key", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError("catalog lookup", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var product Product
		if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
			return nil, domainerrors.NewInternalError("failed to decode product", err)
		}
		return &product, nil
	case http.StatusNotFound:
		return nil, domainerrors.NewNotFoundError("product", productID)
	default:
		return nil, domainerrors.NewServiceUnavailableError("marketplace service",
			fmt.Errorf("catalog lookup returned status %d", resp.StatusCode))
	}
}

// transportError maps transport failures to the taxonomy: deadline
// overruns become TIMEOUT, everything else SERVICE_UNAVAILABLE. Both
// are retryable with backoff; neither is ever conflated with Conflict.
func (c *client) transportError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domainerrors.NewTimeoutError(operation)
	}
	return domainerrors.NewServiceUnavailableError("marketplace service", err)
}
