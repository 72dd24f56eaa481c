package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/response"
)

// AdoptionHandler handles HTTP requests for adoption, payment and cancellation.
type AdoptionHandler struct {
	service *application.AdoptionService
}

// NewAdoptionHandler creates a new AdoptionHandler.
func NewAdoptionHandler(service *application.AdoptionService) *AdoptionHandler {
	return &AdoptionHandler{service: service}
}

// RegisterRoutes registers all adoption routes.
func (h *AdoptionHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	adoptions := r.Group("/api/v1/adoptions")
	adoptions.Use(authMW)
	{
		adoptions.POST("", h.Adopt)
		adoptions.POST("/pay", h.Pay)
		adoptions.POST("/cancel", h.Cancel)
		adoptions.GET("/me", h.GetMyLedger)
		adoptions.GET("/users/:user_id", h.GetUserLedger)
		adoptions.GET("/users/:user_id/payment-summary", h.GetPaymentSummary)
	}
}

// Adopt handles POST /api/v1/adoptions.
func (h *AdoptionHandler) Adopt(c *gin.Context) {
	var req application.AdoptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID, ok := actingUser(c, req.UserID)
	if !ok {
		return
	}
	req.UserID = userID

	result, err := h.service.Adopt(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Pay handles POST /api/v1/adoptions/pay.
func (h *AdoptionHandler) Pay(c *gin.Context) {
	var req application.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID, ok := actingUser(c, req.UserID)
	if !ok {
		return
	}
	req.UserID = userID

	result, err := h.service.Pay(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Cancel handles POST /api/v1/adoptions/cancel.
func (h *AdoptionHandler) Cancel(c *gin.Context) {
	var req application.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID, ok := actingUser(c, req.UserID)
	if !ok {
		return
	}
	req.UserID = userID

	result, err := h.service.Cancel(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetMyLedger handles GET /api/v1/adoptions/me.
func (h *AdoptionHandler) GetMyLedger(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.service.GetLedgerForUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetUserLedger handles GET /api/v1/adoptions/users/:user_id.
func (h *AdoptionHandler) GetUserLedger(c *gin.Context) {
	target, ok := uuidParam(c, "user_id", "user ID")
	if !ok {
		return
	}
	userID, ok := actingUser(c, target)
	if !ok {
		return
	}

	result, err := h.service.GetLedgerForUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetPaymentSummary handles GET /api/v1/adoptions/users/:user_id/payment-summary.
func (h *AdoptionHandler) GetPaymentSummary(c *gin.Context) {
	target, ok := uuidParam(c, "user_id", "user ID")
	if !ok {
		return
	}
	userID, ok := actingUser(c, target)
	if !ok {
		return
	}

	result, err := h.service.GetPaymentSummary(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
