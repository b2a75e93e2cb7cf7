package types

import (
	"encoding/json"

	"nebula/nebula/sources/psql/models"

	"github.com/google/uuid"
)

// Envelope frames every socket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AIMessageRequest is the ai-message payload. FileData is base64 in JSON.
type AIMessageRequest struct {
	ChatID   uuid.UUID `json:"chatID"`
	Content  string    `json:"content"`
	File     bool      `json:"file"`
	FileData []byte    `json:"fileData,omitempty"`
	FileType string    `json:"fileType,omitempty"`
	TempID   string    `json:"tempID"`
}

type AIImageRequest struct {
	ChatID uuid.UUID `json:"chatID"`
	Prompt string    `json:"prompt"`
	TempID string    `json:"tempID"`
}

type TurnStartEvent struct {
	ChatID uuid.UUID `json:"chatID"`
	TempID string    `json:"tempID"`
}

type UserMessageEvent struct {
	MessageFromUser *models.Message `json:"messageFromUser"`
	TempID          string          `json:"tempID"`
}

type AIResponseEvent struct {
	ResponseToUser *models.Message `json:"responseToUser"`
}

// AIErrorEvent carries the fallback text, never the underlying error.
// Message is the persisted error message, or nil when nothing could be stored.
type AIErrorEvent struct {
	Error   string          `json:"error"`
	ChatID  *uuid.UUID      `json:"chatID,omitempty"`
	TempID  string          `json:"tempID,omitempty"`
	Message *models.Message `json:"message"`
}
