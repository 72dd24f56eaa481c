package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/response"
)

// PhotoHandler handles HTTP requests for pet gallery operations.
type PhotoHandler struct {
	service *application.PhotoService
}

// NewPhotoHandler creates a new PhotoHandler.
func NewPhotoHandler(service *application.PhotoService) *PhotoHandler {
	return &PhotoHandler{service: service}
}

// RegisterRoutes registers all photo routes.
func (h *PhotoHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	photos := r.Group("/api/v1/pets")
	{
		photos.POST("/:id/photos", authMW, middleware.RequireRole(auth.RoleAdmin, auth.RoleEmployee), h.UploadPhoto)
		photos.GET("/:id/photos", h.GetPetPhotos)
	}
}

// UploadPhoto handles POST /api/v1/pets/:id/photos.
func (h *PhotoHandler) UploadPhoto(c *gin.Context) {
	petID, ok := uuidParam(c, "id", "pet ID")
	if !ok {
		return
	}

	uploaderID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.UploadPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UploadPhoto(c.Request.Context(), petID, uploaderID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetPetPhotos handles GET /api/v1/pets/:id/photos.
func (h *PhotoHandler) GetPetPhotos(c *gin.Context) {
	petID, ok := uuidParam(c, "id", "pet ID")
	if !ok {
		return
	}

	result, err := h.service.GetPetPhotos(c.Request.Context(), petID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
