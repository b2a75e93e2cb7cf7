package dao

import (
	"context"
	"errors"
	"time"

	"nebula/nebula/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageDAO struct {
	DB *gorm.DB
}

func NewMessageDAO(db *gorm.DB) *MessageDAO {
	return &MessageDAO{DB: db}
}

// Create stores msg, filling its id and timestamp. Timestamps never go
// backwards within a chat; sequential creates get strictly increasing values
// at microsecond resolution. Concurrent creates in one chat may share a
// timestamp, and readers order those ties by id.
func (dao *MessageDAO) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.ChatID == uuid.Nil {
		return nil, errors.New("message has no chat")
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	var last models.Message
	err := dao.DB.WithContext(ctx).
		Select("created_at").
		Where("chat_id = ?", msg.ChatID).
		Order("created_at DESC").
		Limit(1).
		Take(&last).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, err
	case !now.After(last.CreatedAt):
		now = last.CreatedAt.Add(time.Microsecond)
	}
	msg.CreatedAt = now

	if err := dao.DB.WithContext(ctx).Omit(clause.Associations).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// ListRecent returns the newest limit messages of the chat in ascending order.
func (dao *MessageDAO) ListRecent(ctx context.Context, chatID uuid.UUID, limit int) ([]models.Message, error) {
	return dao.ListPage(ctx, chatID, limit, nil)
}

// ListPage is ListRecent restricted to messages created strictly before the cursor.
func (dao *MessageDAO) ListPage(ctx context.Context, chatID uuid.UUID, limit int, before *time.Time) ([]models.Message, error) {
	msgs := []models.Message{}
	if limit <= 0 {
		return msgs, nil
	}
	q := dao.DB.WithContext(ctx).Where("chat_id = ?", chatID)
	if before != nil {
		q = q.Where("created_at < ?", before.UTC())
	}
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (dao *MessageDAO) DeleteByChat(ctx context.Context, chatID uuid.UUID) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&models.Message{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
