package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runcrew/service-running/internal/common/domain"
	"github.com/runcrew/service-running/internal/common/events"
	chatDomain "github.com/runcrew/service-running/internal/domain/chat"
	runningDomain "github.com/runcrew/service-running/internal/domain/running"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

// SendMessageRequest holds a new chat line.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MessageDTO is the response representation of a chat message.
type MessageDTO struct {
	ID         uuid.UUID `json:"id"`
	RunningID  uuid.UUID `json:"running_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListMessagesRequest pages through a room. With no After cursor the newest
// Limit messages are returned; Before walks further back from there.
type ListMessagesRequest struct {
	After  *chatDomain.Cursor
	Before *chatDomain.Cursor
	Limit  int
}

// ProfileGetter resolves a single user to a public profile.
type ProfileGetter interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
}

// ChatService handles the chat room of each running. Only the creator and participants may use it.
type ChatService struct {
	repo     chatDomain.MessageRepository
	runnings runningDomain.Repository
	profiles ProfileGetter
	producer EventPublisher
	logger   *zap.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(
	repo chatDomain.MessageRepository,
	runnings runningDomain.Repository,
	profiles ProfileGetter,
	producer EventPublisher,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		repo:     repo,
		runnings: runnings,
		profiles: profiles,
		producer: producer,
		logger:   logger,
	}
}

// SendMessage posts content to the running's room.
func (s *ChatService) SendMessage(ctx context.Context, runningID, senderID uuid.UUID, req SendMessageRequest) (*MessageDTO, error) {
	if err := s.authorize(ctx, runningID, senderID); err != nil {
		return nil, err
	}

	senderName := ""
	if p, err := s.profiles.GetProfile(ctx, senderID); err == nil {
		senderName = p.DisplayName
	} else {
		s.logger.Warn("sender profile unavailable", zap.String("sender_id", senderID.String()), zap.Error(err))
	}

	msg, err := chatDomain.NewMessage(runningID, senderID, senderName, req.Content)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	publishEvent(ctx, s.producer, s.logger, events.TopicChatEvents, events.ChatMessageSent, runningID.String(),
		events.ChatMessageSentEvent{
			MessageID:  msg.ID(),
			RunningID:  runningID,
			SenderID:   senderID,
			OccurredAt: msg.CreatedAt(),
		})

	result := toMessageDTO(msg)
	return &result, nil
}

// ListMessages returns a page of messages in ascending order.
func (s *ChatService) ListMessages(ctx context.Context, runningID, userID uuid.UUID, req ListMessagesRequest) ([]MessageDTO, error) {
	if err := s.authorize(ctx, runningID, userID); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	msgs, err := s.repo.List(ctx, chatDomain.ListQuery{
		RunningID: runningID,
		After:     req.After,
		Before:    req.Before,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	result := make([]MessageDTO, len(msgs))
	for i, m := range msgs {
		result[i] = toMessageDTO(m)
	}
	return result, nil
}

func (s *ChatService) authorize(ctx context.Context, runningID, userID uuid.UUID) error {
	r, err := s.runnings.FindByID(ctx, runningID)
	if err != nil {
		return err
	}
	if !r.CanAccessChat(userID) {
		return domain.NewForbiddenError("only the creator and participants can use this chat")
	}
	return nil
}

func toMessageDTO(m *chatDomain.Message) MessageDTO {
	return MessageDTO{
		ID:         m.ID(),
		RunningID:  m.RunningID(),
		SenderID:   m.SenderID(),
		SenderName: m.SenderName(),
		Content:    m.Content(),
		CreatedAt:  m.CreatedAt(),
	}
}
