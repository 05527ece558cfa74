package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/runcrew/service-running/internal/application"
	"github.com/runcrew/service-running/internal/common/auth"
	"github.com/runcrew/service-running/internal/common/middleware"
	"github.com/runcrew/service-running/internal/common/response"
)

// AdminRunningHandler handles admin HTTP requests for running management.
type AdminRunningHandler struct {
	service *application.RunningService
}

// NewAdminRunningHandler creates a new AdminRunningHandler.
func NewAdminRunningHandler(service *application.RunningService) *AdminRunningHandler {
	return &AdminRunningHandler{service: service}
}

// RegisterRoutes registers admin running routes.
func (h *AdminRunningHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/runnings", h.ListRunnings)
		admin.GET("/stats/runnings", h.RunningStats)
	}
}

// ListRunnings handles GET /api/v1/admin/runnings.
func (h *AdminRunningHandler) ListRunnings(c *gin.Context) {
	page, limit := parsePagination(c)

	runnings, total, err := h.service.ListAllRunnings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, runnings, total, page, limit)
}

// RunningStats handles GET /api/v1/admin/stats/runnings.
func (h *AdminRunningHandler) RunningStats(c *gin.Context) {
	stats, err := h.service.GetRunningStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
