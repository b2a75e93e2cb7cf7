// Package pipeline runs conversational turns: persist the user's message,
// recall memory, generate a reply and report progress to the session.
package pipeline

import (
	"context"
	"errors"

	"nebula/nebula/services/embeddings"
	"nebula/nebula/services/llm"
	"nebula/nebula/services/memory"
	"nebula/nebula/sources/psql/models"
	"nebula/nebula/sources/storage"
	"nebula/nebula/sources/vector"

	"github.com/google/uuid"
)

// Outbound event names understood by the web client.
const (
	EventResponseStart = "ai-response-start"
	EventImageStart    = "ai-image-start"
	EventUserMessage   = "user-message"
	EventResponse      = "ai-response"
	EventImageResponse = "ai-image-response"
	EventError         = "ai-error"
)

const (
	TextFallback  = "Sorry, something went wrong. Please try again."
	ImageFallback = "Failed to generate image"
)

var (
	ErrEmptyTurn          = errors.New("message has no content or attachment")
	ErrAttachmentInvalid  = errors.New("attachment needs data and a media type")
	ErrAttachmentTooLarge = errors.New("attachment too large")
)

// Emitter delivers events to one session. Emit must not block the turn on a
// dead connection.
type Emitter interface {
	Emit(event string, payload interface{})
}

type ChatGetter interface {
	GetChat(ctx context.Context, userID int, chatID uuid.UUID) (*models.Chat, error)
}

type MessageCreator interface {
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)
}

type ContextAssembler interface {
	Assemble(ctx context.Context, req memory.Request) (*memory.Context, error)
}

type Indexer interface {
	Index(ctx context.Context, e vector.Entry) error
}

// Runner holds the long-lived clients every turn shares.
type Runner struct {
	Chats              ChatGetter
	Messages           MessageCreator
	Embedder           embeddings.Embedder
	Index              Indexer
	Assembler          ContextAssembler
	Gateway            llm.Gateway
	Images             llm.ImageGateway
	Relay              storage.Relay
	MaxAttachmentBytes int64
}

// TextTurn is one ai-message event.
type TextTurn struct {
	UserID   int
	ChatID   uuid.UUID
	Content  string
	File     bool
	FileData []byte
	FileType string
	TempID   string
}

// ImageTurn is one ai-image event.
type ImageTurn struct {
	UserID int
	ChatID uuid.UUID
	Prompt string
	TempID string
}
