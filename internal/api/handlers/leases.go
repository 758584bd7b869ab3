// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradepost/deal-service/internal/api/dto"
	"github.com/tradepost/deal-service/internal/api/middleware"
	"github.com/tradepost/deal-service/internal/domain/errors"
	"github.com/tradepost/deal-service/internal/services/lease"
)

// LeasesHandler handles reservation lease endpoints.
type LeasesHandler struct {
	leases lease.Manager
}

// NewLeasesHandler creates a new LeasesHandler.
func NewLeasesHandler(leases lease.Manager) *LeasesHandler {
	return &LeasesHandler{leases: leases}
}

// CreateLease handles POST /leases.
func (h *LeasesHandler) CreateLease(c *gin.Context) {
	var req dto.CreateLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	created, err := h.leases.Create(c.Request.Context(), req.ProductID, middleware.GetPrincipalID(c), req.DurationMinutes)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.LeaseResponse{Lease: created})
}

// GetLeaseForProduct handles GET /products/:productId/lease. Responds
// with a null lease when the product is unheld; terminal leases are
// never surfaced here.
func (h *LeasesHandler) GetLeaseForProduct(c *gin.Context) {
	productID := c.Param("productId")
	if productID == "" {
		middleware.HandleError(c, errors.NewValidationError("missing product id", ""))
		return
	}

	current, err := h.leases.GetForProduct(c.Request.Context(), productID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LeaseResponse{Lease: current})
}

// CancelLease handles POST /leases/:leaseId/cancel.
func (h *LeasesHandler) CancelLease(c *gin.Context) {
	leaseID := c.Param("leaseId")
	if leaseID == "" {
		middleware.HandleError(c, errors.NewValidationError("missing lease id", ""))
		return
	}

	cancelled, err := h.leases.Cancel(c.Request.Context(), leaseID, middleware.GetPrincipalID(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LeaseResponse{Lease: cancelled})
}

// ListMyLeases handles GET /leases.
func (h *LeasesHandler) ListMyLeases(c *gin.Context) {
	leases, err := h.leases.ListForHolder(c.Request.Context(), middleware.GetPrincipalID(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LeaseListResponse{
		Leases: leases,
		Total:  len(leases),
	})
}
