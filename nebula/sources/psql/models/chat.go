package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chat is a titled conversation owned by one user.
type Chat struct {
	ID        uuid.UUID `json:"_id" gorm:"type:uuid;primaryKey"`
	UserID    int       `json:"userID" gorm:"not null;index"`
	User      User      `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

func (Chat) TableName() string {
	return "chats"
}

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleError Role = "error"
)

// Message is immutable once stored. Content is nil for attachment-only turns.
type Message struct {
	ID        uuid.UUID `json:"_id" gorm:"type:uuid;primaryKey"`
	UserID    int       `json:"userID" gorm:"not null;index"`
	ChatID    uuid.UUID `json:"chatID" gorm:"type:uuid;not null;index:idx_messages_chat_created,priority:1"`
	Chat      Chat      `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnDelete:CASCADE"`
	Role      Role      `json:"role" gorm:"type:varchar(16);not null"`
	Content   *string   `json:"content" gorm:"type:text"`
	File      bool      `json:"file" gorm:"not null;default:false"`
	FileURL   *string   `json:"fileURL,omitempty" gorm:"type:varchar(1024)"`
	FileType  *string   `json:"fileType,omitempty" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index:idx_messages_chat_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Text returns the content or "" for attachment-only messages.
func (m *Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}
