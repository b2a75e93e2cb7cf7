package vector

import (
	"context"
	"fmt"

	"nebula/nebula/sources/psql/models"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PGVectorIndex stores embeddings next to the messages in postgres.
// Similarity is cosine, reported as 1 - distance.
type PGVectorIndex struct {
	DB *gorm.DB
}

// NewPGVectorIndex enables the vector extension and migrates the memory table.
func NewPGVectorIndex(ctx context.Context, db *gorm.DB) (*PGVectorIndex, error) {
	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&models.MemoryEntry{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate memory entries: %w", err)
	}
	return &PGVectorIndex{DB: db}, nil
}

func (p *PGVectorIndex) Index(ctx context.Context, e Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	entry := models.MemoryEntry{
		MessageID: e.MessageID,
		UserID:    e.Metadata.UserID,
		ChatID:    e.Metadata.ChatID,
		Text:      e.Metadata.Text,
		Embedding: pgvector.NewVector(e.Vector),
		Metadata: datatypes.JSONMap{
			metaMessageID: e.MessageID.String(),
			metaChatID:    e.Metadata.ChatID.String(),
			metaUserID:    e.Metadata.UserID,
		},
	}
	return p.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "text", "metadata"}),
		}).
		Create(&entry).Error
}

type scoredEntry struct {
	MessageID uuid.UUID
	UserID    int
	ChatID    uuid.UUID
	Text      string
	Score     float64
}

func (p *PGVectorIndex) Query(ctx context.Context, vec []float32, limit int, f Filter) ([]Match, error) {
	if f.UserID == 0 {
		return nil, ErrUserScopeRequired
	}
	if limit <= 0 {
		return []Match{}, nil
	}
	if len(vec) == 0 {
		return nil, ErrEmptyVector
	}
	q := pgvector.NewVector(vec)

	tx := p.DB.WithContext(ctx).
		Model(&models.MemoryEntry{}).
		Select("message_id, user_id, chat_id, text, 1 - (embedding <=> ?) AS score", q).
		Where("user_id = ?", f.UserID)
	if f.ChatID != nil {
		tx = tx.Where("chat_id = ?", *f.ChatID)
	}
	if len(f.ExcludeMessageIDs) > 0 {
		tx = tx.Where("message_id NOT IN ?", f.ExcludeMessageIDs)
	}

	var rows []scoredEntry
	err := tx.Clauses(clause.OrderBy{
		Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{q}},
	}).Limit(limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}

	matches := make([]Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, Match{
			MessageID: r.MessageID,
			Metadata:  Metadata{ChatID: r.ChatID, UserID: r.UserID, Text: r.Text},
			Score:     float32(r.Score),
		})
	}
	return matches, nil
}

func (p *PGVectorIndex) DeleteByChat(ctx context.Context, userID int, chatID uuid.UUID) error {
	if userID == 0 {
		return ErrUserScopeRequired
	}
	return p.DB.WithContext(ctx).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Delete(&models.MemoryEntry{}).Error
}

// Close leaves the shared gorm handle open; the database owns it.
func (p *PGVectorIndex) Close() error {
	return nil
}
