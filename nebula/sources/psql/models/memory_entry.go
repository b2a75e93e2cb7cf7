package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// MemoryEntry is one embedded message in the pgvector memory index.
// Text duplicates the message content at embedding time.
type MemoryEntry struct {
	MessageID uuid.UUID         `gorm:"column:message_id;type:uuid;primaryKey"`
	UserID    int               `gorm:"column:user_id;not null;index"`
	ChatID    uuid.UUID         `gorm:"column:chat_id;type:uuid;not null;index"`
	Text      string            `gorm:"column:text;type:text;not null"`
	Embedding pgvector.Vector   `gorm:"column:embedding;type:vector"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (MemoryEntry) TableName() string {
	return "memory_entries"
}
