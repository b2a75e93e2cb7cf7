package vector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"nebula/nebula/utils/logging"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const (
	metaMessageID = "message_id"
	metaChatID    = "chat_id"
	metaUserID    = "user_id"
)

// ChromemIndex keeps embeddings in process with chromem-go, one collection per user.
type ChromemIndex struct {
	db          *chromem.DB
	collections map[int]*chromem.Collection
	mu          sync.RWMutex
}

func NewChromemIndex() *ChromemIndex {
	return &ChromemIndex{
		db:          chromem.NewDB(),
		collections: make(map[int]*chromem.Collection),
	}
}

func (s *ChromemIndex) collection(userID int) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[userID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[userID]; ok {
		return col, nil
	}
	// we always pass embeddings in, so no embedding func
	col, err := s.db.GetOrCreateCollection(fmt.Sprintf("user_%d", userID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[userID] = col
	return col, nil
}

func (s *ChromemIndex) Index(ctx context.Context, e Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	col, err := s.collection(e.Metadata.UserID)
	if err != nil {
		return err
	}
	vec := make([]float32, len(e.Vector))
	copy(vec, e.Vector)
	doc := chromem.Document{
		ID:        e.MessageID.String(),
		Content:   e.Metadata.Text,
		Embedding: vec,
		Metadata: map[string]string{
			metaMessageID: e.MessageID.String(),
			metaChatID:    e.Metadata.ChatID.String(),
			metaUserID:    strconv.Itoa(e.Metadata.UserID),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (s *ChromemIndex) Query(ctx context.Context, vec []float32, limit int, f Filter) ([]Match, error) {
	if f.UserID == 0 {
		return nil, ErrUserScopeRequired
	}
	if limit <= 0 {
		return []Match{}, nil
	}
	if len(vec) == 0 {
		return nil, ErrEmptyVector
	}
	col, err := s.collection(f.UserID)
	if err != nil {
		return nil, err
	}

	where := map[string]string{metaUserID: strconv.Itoa(f.UserID)}
	if f.ChatID != nil {
		where[metaChatID] = f.ChatID.String()
	}
	skip := excluded(f)

	// chromem rejects nResults above the collection size
	n := limit + len(skip)
	if count := col.Count(); n > count {
		n = count
	}
	var results []chromem.Result
	for ; n >= 1; n-- {
		results, err = col.QueryEmbedding(ctx, vec, n, where, nil)
		if err == nil {
			break
		}
		if !isInsufficientDocsError(err) {
			return nil, fmt.Errorf("chromem query: %w", err)
		}
	}
	if n < 1 {
		return []Match{}, nil
	}

	matches := make([]Match, 0, limit)
	for _, r := range results {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			logging.AppLogger.Warn("skipping chromem document with bad id", zap.String("id", r.ID))
			continue
		}
		if _, ok := skip[id]; ok {
			continue
		}
		chatID, _ := uuid.Parse(r.Metadata[metaChatID])
		userID, _ := strconv.Atoi(r.Metadata[metaUserID])
		matches = append(matches, Match{
			MessageID: id,
			Metadata:  Metadata{ChatID: chatID, UserID: userID, Text: r.Content},
			Score:     r.Similarity,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *ChromemIndex) DeleteByChat(ctx context.Context, userID int, chatID uuid.UUID) error {
	if userID == 0 {
		return ErrUserScopeRequired
	}
	col, err := s.collection(userID)
	if err != nil {
		return err
	}
	if col.Count() == 0 {
		return nil
	}
	return col.Delete(ctx, map[string]string{metaChatID: chatID.String()}, nil)
}

// Close is a no-op; chromem keeps everything in memory.
func (s *ChromemIndex) Close() error {
	return nil
}

func isInsufficientDocsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
