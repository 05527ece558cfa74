package handler

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/runcrew/service-running/internal/application"
	"github.com/runcrew/service-running/internal/common/auth"
	"github.com/runcrew/service-running/internal/common/middleware"
	"github.com/runcrew/service-running/internal/common/response"
)

// defaultRadiusKm applies when a feed request has a location but no radius_km.
const defaultRadiusKm = 5.0

// RunningHandler handles HTTP requests for running events.
type RunningHandler struct {
	service *application.RunningService
}

// NewRunningHandler creates a new RunningHandler.
func NewRunningHandler(service *application.RunningService) *RunningHandler {
	return &RunningHandler{service: service}
}

// RegisterRoutes registers all running routes on the given router group.
func (h *RunningHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	runnings := r.Group("/api/v1/runnings")
	runnings.Use(middleware.AuthMiddleware(jwtManager))
	{
		runnings.POST("", h.CreateRunning)
		runnings.GET("", h.ListFeed)
		runnings.GET("/:id", h.GetRunning)
		runnings.POST("/:id/join", h.Join)
		runnings.POST("/:id/leave", h.Leave)
		runnings.POST("/:id/close", h.CloseRecruiting)
		runnings.POST("/:id/complete", h.Complete)
		runnings.POST("/:id/cancel", h.Cancel)
		runnings.GET("/:id/participants", h.ListParticipants)
		runnings.DELETE("/:id/participants/:userId", h.Kick)
		runnings.GET("/:id/course.geojson", h.CourseGeoJSON)
	}
}

// CreateRunning handles POST /api/v1/runnings.
func (h *RunningHandler) CreateRunning(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.CreateRunningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateRunning(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListFeed handles GET /api/v1/runnings. lat and lng must be given together.
func (h *RunningHandler) ListFeed(c *gin.Context) {
	req, ok := parseFeedRequest(c)
	if !ok {
		return
	}

	result, err := h.service.ListFeed(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

func parseFeedRequest(c *gin.Context) (application.FeedRequest, bool) {
	page, limit := parsePagination(c)
	req := application.FeedRequest{Page: page, Limit: limit}

	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr == "" && lngStr == "" {
		return req, true
	}
	if latStr == "" || lngStr == "" {
		response.BadRequest(c, "lat and lng must be provided together")
		return req, false
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		response.BadRequest(c, "invalid lat")
		return req, false
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		response.BadRequest(c, "invalid lng")
		return req, false
	}
	radius := defaultRadiusKm
	if s := c.Query("radius_km"); s != "" {
		if radius, err = strconv.ParseFloat(s, 64); err != nil {
			response.BadRequest(c, "invalid radius_km")
			return req, false
		}
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 || radius > application.MaxFeedRadiusKm {
		response.BadRequest(c, fmt.Sprintf("radius_km must be in (0, %g]", application.MaxFeedRadiusKm))
		return req, false
	}

	req.Lat, req.Lng, req.RadiusKm = &lat, &lng, radius
	return req, true
}

// GetRunning handles GET /api/v1/runnings/:id.
func (h *RunningHandler) GetRunning(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}

	result, err := h.service.GetRunning(c.Request.Context(), runningID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Join handles POST /api/v1/runnings/:id/join.
func (h *RunningHandler) Join(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.service.Join(c.Request.Context(), runningID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Leave handles POST /api/v1/runnings/:id/leave.
func (h *RunningHandler) Leave(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.service.Leave(c.Request.Context(), runningID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Kick handles DELETE /api/v1/runnings/:id/participants/:userId.
func (h *RunningHandler) Kick(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "userId", "user ID")
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.service.Kick(c.Request.Context(), runningID, actorID, targetID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CloseRecruiting handles POST /api/v1/runnings/:id/close.
func (h *RunningHandler) CloseRecruiting(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.service.CloseRecruiting(c.Request.Context(), runningID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Complete handles POST /api/v1/runnings/:id/complete.
func (h *RunningHandler) Complete(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.service.Complete(c.Request.Context(), runningID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Cancel handles POST /api/v1/runnings/:id/cancel. The body is optional.
func (h *RunningHandler) Cancel(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var body application.CancelRunningRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	result, err := h.service.Cancel(c.Request.Context(), runningID, actorID, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListParticipants handles GET /api/v1/runnings/:id/participants.
func (h *RunningHandler) ListParticipants(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}

	result, err := h.service.ListParticipants(c.Request.Context(), runningID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CourseGeoJSON handles GET /api/v1/runnings/:id/course.geojson. The body is a
// bare GeoJSON Feature so map clients can load it directly.
func (h *RunningHandler) CourseGeoJSON(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}

	feature, err := h.service.CourseGeoJSON(c.Request.Context(), runningID)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := feature.MarshalJSON()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}
