package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/response"
)

// AdminAdoptionHandler handles admin HTTP requests for ledger oversight.
type AdminAdoptionHandler struct {
	service *application.AdoptionService
}

// NewAdminAdoptionHandler creates a new AdminAdoptionHandler.
func NewAdminAdoptionHandler(service *application.AdoptionService) *AdminAdoptionHandler {
	return &AdminAdoptionHandler{service: service}
}

// RegisterRoutes registers admin adoption routes.
func (h *AdminAdoptionHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/adoptions", h.ListLedgers)
		admin.GET("/adoptions/:id", h.GetLedger)
		admin.GET("/adoptions/pets/:pet_id", h.GetLedgerForPet)
		admin.GET("/stats/adoptions", h.LedgerStats)
	}
}

// ListLedgers handles GET /api/v1/admin/adoptions.
func (h *AdminAdoptionHandler) ListLedgers(c *gin.Context) {
	page, limit := pagination(c)

	ledgers, total, err := h.service.ListLedgers(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, ledgers, total, page, limit)
}

// GetLedger handles GET /api/v1/admin/adoptions/:id.
func (h *AdminAdoptionHandler) GetLedger(c *gin.Context) {
	ledgerID, ok := uuidParam(c, "id", "ledger ID")
	if !ok {
		return
	}

	result, err := h.service.GetLedger(c.Request.Context(), ledgerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetLedgerForPet handles GET /api/v1/admin/adoptions/pets/:pet_id.
func (h *AdminAdoptionHandler) GetLedgerForPet(c *gin.Context) {
	petID, ok := uuidParam(c, "pet_id", "pet ID")
	if !ok {
		return
	}

	result, err := h.service.GetLedgerForPet(c.Request.Context(), petID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// LedgerStats handles GET /api/v1/admin/stats/adoptions.
func (h *AdminAdoptionHandler) LedgerStats(c *gin.Context) {
	stats, err := h.service.GetLedgerStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
