// Package vector stores message embeddings and answers similarity queries
// scoped to a single user.
package vector

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserScopeRequired = errors.New("vector query requires a user scope")
	ErrEmptyVector       = errors.New("empty vector")
)

// Metadata travels with every entry and comes back on matches.
type Metadata struct {
	ChatID uuid.UUID `json:"chatID"`
	UserID int       `json:"userID"`
	Text   string    `json:"text"`
}

type Entry struct {
	MessageID uuid.UUID
	Vector    []float32
	Metadata  Metadata
}

// Filter narrows a query. UserID is mandatory.
type Filter struct {
	UserID            int
	ChatID            *uuid.UUID
	ExcludeMessageIDs []uuid.UUID
}

type Match struct {
	MessageID uuid.UUID
	Metadata  Metadata
	Score     float32
}

// Index is implemented by every vector backend. Indexing the same message
// twice replaces the earlier entry.
type Index interface {
	Index(ctx context.Context, e Entry) error
	// Query returns at most limit matches ordered by similarity, highest first.
	Query(ctx context.Context, vec []float32, limit int, f Filter) ([]Match, error)
	DeleteByChat(ctx context.Context, userID int, chatID uuid.UUID) error
	Close() error
}

func validateEntry(e Entry) error {
	if e.Metadata.UserID == 0 {
		return ErrUserScopeRequired
	}
	if len(e.Vector) == 0 {
		return ErrEmptyVector
	}
	return nil
}

func excluded(f Filter) map[uuid.UUID]struct{} {
	if len(f.ExcludeMessageIDs) == 0 {
		return nil
	}
	m := make(map[uuid.UUID]struct{}, len(f.ExcludeMessageIDs))
	for _, id := range f.ExcludeMessageIDs {
		m[id] = struct{}{}
	}
	return m
}
