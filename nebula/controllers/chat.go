package controllers

import (
	"context"
	"time"

	"nebula/nebula/sources/psql/dao"
	"nebula/nebula/sources/psql/models"
	"nebula/nebula/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMessagePage = 50
	MaxMessagePage     = 200
)

// IndexCleaner removes a chat's memory entries once the chat is gone.
type IndexCleaner interface {
	DeleteByChat(ctx context.Context, userID int, chatID uuid.UUID) error
}

type ChatController struct {
	chats    *dao.ChatDAO
	messages *dao.MessageDAO
	index    IndexCleaner
}

func NewChatController(chats *dao.ChatDAO, messages *dao.MessageDAO, index IndexCleaner) *ChatController {
	return &ChatController{chats: chats, messages: messages, index: index}
}

func (c *ChatController) CreateChat(ctx context.Context, userID int, title string) (*models.Chat, error) {
	return c.chats.CreateChat(ctx, userID, title)
}

func (c *ChatController) ListChats(ctx context.Context, userID int) ([]models.Chat, error) {
	return c.chats.ListChats(ctx, userID)
}

// ListMessages pages backwards from before (or from now) and returns the page oldest first.
func (c *ChatController) ListMessages(ctx context.Context, userID int, chatID uuid.UUID, limit int, before *time.Time) ([]models.Message, error) {
	if _, err := c.chats.GetChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessagePage
	}
	if limit > MaxMessagePage {
		limit = MaxMessagePage
	}
	return c.messages.ListPage(ctx, chatID, limit, before)
}

// DeleteChat removes the chat with its messages, then its memory entries.
// A failed memory cleanup is logged and does not fail the delete.
func (c *ChatController) DeleteChat(ctx context.Context, userID int, chatID uuid.UUID) (int64, error) {
	n, err := c.chats.DeleteChat(ctx, userID, chatID)
	if err != nil {
		return 0, err
	}
	if c.index != nil {
		if err := c.index.DeleteByChat(ctx, userID, chatID); err != nil {
			logging.ErrorLogger.Error("failed to delete memory entries for chat",
				zap.Int("user_id", userID),
				zap.String("chat_id", chatID.String()),
				zap.Error(err),
			)
		}
	}
	logging.AppLogger.Info("chat deleted",
		zap.Int("user_id", userID),
		zap.String("chat_id", chatID.String()),
		zap.Int64("messages", n),
	)
	return n, nil
}
