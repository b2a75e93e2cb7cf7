package dao

import (
	"context"
	"errors"
	"strings"

	"nebula/nebula/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrInvalidTitle = errors.New("chat title must be 1-200 characters")
)

const maxTitleLen = 200

type ChatDAO struct {
	DB *gorm.DB
}

func NewChatDAO(db *gorm.DB) *ChatDAO {
	return &ChatDAO{DB: db}
}

func (dao *ChatDAO) CreateChat(ctx context.Context, userID int, title string) (*models.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" || len([]rune(title)) > maxTitleLen {
		return nil, ErrInvalidTitle
	}
	chat := models.Chat{UserID: userID, Title: title}
	if err := dao.DB.WithContext(ctx).Omit(clause.Associations).Create(&chat).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListChats returns the user's chats, newest first.
func (dao *ChatDAO) ListChats(ctx context.Context, userID int) ([]models.Chat, error) {
	chats := []models.Chat{}
	err := dao.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

// GetChat returns ErrChatNotFound for missing chats and for chats owned by someone else.
func (dao *ChatDAO) GetChat(ctx context.Context, userID int, chatID uuid.UUID) (*models.Chat, error) {
	var chat models.Chat
	err := dao.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", chatID, userID).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// DeleteChat removes the chat and all of its messages in one transaction
// and returns how many messages were removed.
func (dao *ChatDAO) DeleteChat(ctx context.Context, userID int, chatID uuid.UUID) (int64, error) {
	var removed int64
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		err := tx.Where("id = ? AND user_id = ?", chatID, userID).First(&chat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatNotFound
		}
		if err != nil {
			return err
		}
		// messages first, the FK cascade would otherwise hide the count
		n, err := NewMessageDAO(tx).DeleteByChat(ctx, chatID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&chat).Error; err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
