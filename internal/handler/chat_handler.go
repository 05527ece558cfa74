package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/runcrew/service-running/internal/application"
	"github.com/runcrew/service-running/internal/common/auth"
	"github.com/runcrew/service-running/internal/common/middleware"
	"github.com/runcrew/service-running/internal/common/response"
	chatDomain "github.com/runcrew/service-running/internal/domain/chat"
)

// ChatHandler handles the chat room of a running.
type ChatHandler struct {
	service *application.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(service *application.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// RegisterRoutes registers the message routes.
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	messages := r.Group("/api/v1/runnings/:id/messages")
	messages.Use(middleware.AuthMiddleware(jwtManager))
	{
		messages.POST("", h.SendMessage)
		messages.GET("", h.ListMessages)
	}
}

// SendMessage handles POST /api/v1/runnings/:id/messages.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SendMessage(c.Request.Context(), runningID, userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListMessages handles GET /api/v1/runnings/:id/messages.
// Query: after/after_id to poll for newer messages, before/before_id to load
// older history, limit. Without a cursor the newest page is returned.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	runningID, ok := pathID(c, "id", "running ID")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.ListMessagesRequest
	if req.After, ok = queryCursor(c, "after"); !ok {
		return
	}
	if req.Before, ok = queryCursor(c, "before"); !ok {
		return
	}
	req.Limit, _ = strconv.Atoi(c.Query("limit"))

	result, err := h.service.ListMessages(c.Request.Context(), runningID, userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// queryCursor reads the name and name_id query parameters. It returns nil when
// name is absent and writes a 400 when either value is malformed.
func queryCursor(c *gin.Context, name string) (*chatDomain.Cursor, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		response.BadRequest(c, name+" must be an RFC 3339 timestamp")
		return nil, false
	}
	cursor := &chatDomain.Cursor{CreatedAt: at}
	if rawID := c.Query(name + "_id"); rawID != "" {
		if cursor.ID, err = uuid.Parse(rawID); err != nil {
			response.BadRequest(c, "invalid "+name+"_id")
			return nil, false
		}
	}
	return cursor, true
}
