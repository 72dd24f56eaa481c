package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/response"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
			return petDomain.Gender(fl.Field().String()).IsValid()
		})
	}
}

// pagination reads page and limit query parameters, falling back to 1 and 20.
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// uuidParam parses a path parameter, writing a 400 on failure.
func uuidParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+label)
		return uuid.Nil, false
	}
	return id, true
}

// actingUser resolves whose ledger a request targets. Customers may only act for
// themselves; staff may name any user. A nil target means the caller.
func actingUser(c *gin.Context, target uuid.UUID) (uuid.UUID, bool) {
	callerID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return uuid.Nil, false
	}
	if target == uuid.Nil || target == callerID {
		return callerID, true
	}
	role, _ := middleware.GetUserRole(c)
	if !role.IsStaff() {
		response.Forbidden(c, "you can only manage your own adoptions")
		return uuid.Nil, false
	}
	return target, true
}
