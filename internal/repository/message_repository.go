package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	chatDomain "github.com/runcrew/service-running/internal/domain/chat"
)

// MessageModel is the GORM model for the chat_messages table.
type MessageModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_chat_messages_running_created,priority:3"`
	RunningID  uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_messages_running_created,priority:1"`
	SenderID   uuid.UUID `gorm:"type:uuid;not null"`
	SenderName string    `gorm:"type:varchar(50)"`
	Content    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;index:idx_chat_messages_running_created,priority:2"`
}

// TableName sets the table name.
func (MessageModel) TableName() string { return "chat_messages" }

// GormMessageRepository implements chat.MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GormMessageRepository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Save persists a new chat message.
func (r *GormMessageRepository) Save(ctx context.Context, msg *chatDomain.Message) error {
	model := toMessageModel(msg)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// List returns a page of a room's messages in ascending (created_at, id) order.
// Without an After cursor the page is the newest q.Limit messages.
func (r *GormMessageRepository) List(ctx context.Context, q chatDomain.ListQuery) ([]*chatDomain.Message, error) {
	db := r.db.WithContext(ctx).Where("running_id = ?", q.RunningID)
	if q.After != nil {
		db = cursorScope(db, ">", *q.After)
	}
	if q.Before != nil {
		db = cursorScope(db, "<", *q.Before)
	}

	newestFirst := q.After == nil
	if newestFirst {
		db = db.Order("created_at DESC, id DESC")
	} else {
		db = db.Order("created_at ASC, id ASC")
	}

	var models []MessageModel
	if err := db.Limit(q.Limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs := make([]*chatDomain.Message, len(models))
	for i := range models {
		msgs[i] = toMessageDomain(&models[i])
	}
	if newestFirst {
		slices.Reverse(msgs)
	}
	return msgs, nil
}

// cursorScope filters rows strictly on one side of c. op is ">" or "<".
func cursorScope(db *gorm.DB, op string, c chatDomain.Cursor) *gorm.DB {
	if c.ID == uuid.Nil {
		return db.Where("created_at "+op+" ?", c.CreatedAt)
	}
	return db.Where("(created_at, id) "+op+" (?, ?)", c.CreatedAt, c.ID)
}

func toMessageModel(m *chatDomain.Message) MessageModel {
	return MessageModel{
		ID:         m.ID(),
		RunningID:  m.RunningID(),
		SenderID:   m.SenderID(),
		SenderName: m.SenderName(),
		Content:    m.Content(),
		CreatedAt:  m.CreatedAt(),
	}
}

func toMessageDomain(m *MessageModel) *chatDomain.Message {
	return chatDomain.Reconstruct(m.ID, m.RunningID, m.SenderID, m.SenderName, m.Content, m.CreatedAt.UTC())
}
