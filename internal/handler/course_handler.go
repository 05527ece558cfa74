package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/runcrew/service-running/internal/application"
	"github.com/runcrew/service-running/internal/common/auth"
	"github.com/runcrew/service-running/internal/common/middleware"
	"github.com/runcrew/service-running/internal/common/response"
)

// CourseHandler handles course-editing session requests.
type CourseHandler struct {
	service *application.CourseSessionService
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(service *application.CourseSessionService) *CourseHandler {
	return &CourseHandler{service: service}
}

// RegisterRoutes registers all course session routes on the given router group.
func (h *CourseHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	sessions := r.Group("/api/v1/courses/sessions")
	sessions.Use(middleware.AuthMiddleware(jwtManager))
	{
		sessions.POST("", h.StartSession)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.CancelSession)
		sessions.POST("/:id/waypoints", h.AddWaypoint)
		sessions.DELETE("/:id/waypoints", h.Clear)
		sessions.POST("/:id/truncate", h.TruncateAfter)
		sessions.POST("/:id/finalize", h.Finalize)
	}
}

// StartSession handles POST /api/v1/courses/sessions.
func (h *CourseHandler) StartSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.StartCourseSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	result, err := h.service.StartSession(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GetSession handles GET /api/v1/courses/sessions/:id.
func (h *CourseHandler) GetSession(c *gin.Context) {
	userID, sessionID, ok := h.ids(c)
	if !ok {
		return
	}

	result, err := h.service.GetSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// AddWaypoint handles POST /api/v1/courses/sessions/:id/waypoints.
func (h *CourseHandler) AddWaypoint(c *gin.Context) {
	userID, sessionID, ok := h.ids(c)
	if !ok {
		return
	}

	var req application.WaypointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.AddWaypoint(c.Request.Context(), userID, sessionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// TruncateAfter handles POST /api/v1/courses/sessions/:id/truncate.
func (h *CourseHandler) TruncateAfter(c *gin.Context) {
	userID, sessionID, ok := h.ids(c)
	if !ok {
		return
	}

	var req application.TruncateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.TruncateAfter(c.Request.Context(), userID, sessionID, *req.Index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Clear handles DELETE /api/v1/courses/sessions/:id/waypoints.
func (h *CourseHandler) Clear(c *gin.Context) {
	userID, sessionID, ok := h.ids(c)
	if !ok {
		return
	}

	result, err := h.service.Clear(c.Request.Context(), userID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Finalize handles POST /api/v1/courses/sessions/:id/finalize.
func (h *CourseHandler) Finalize(c *gin.Context) {
	userID, sessionID, ok := h.ids(c)
	if !ok {
		return
	}

	result, err := h.service.Finalize(c.Request.Context(), userID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CancelSession handles DELETE /api/v1/courses/sessions/:id.
func (h *CourseHandler) CancelSession(c *gin.Context) {
	userID, sessionID, ok := h.ids(c)
	if !ok {
		return
	}

	if err := h.service.CancelSession(c.Request.Context(), userID, sessionID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CourseHandler) ids(c *gin.Context) (userID, sessionID uuid.UUID, ok bool) {
	if userID, ok = currentUser(c); !ok {
		return
	}
	sessionID, ok = pathID(c, "id", "session ID")
	return
}
