// Package memory builds the prompt for a turn out of the chat's recent
// messages and semantically related messages from the user's history.
package memory

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"nebula/nebula/services/llm"
	"nebula/nebula/sources/psql/models"
	"nebula/nebula/sources/storage"
	"nebula/nebula/sources/vector"
	"nebula/nebula/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	LongTermPreamble      = "These are some previous messages from the chat, use them to generate a response:\n"
	AttachmentUnavailable = "[attachment unavailable]"

	DefaultShortTermLimit = 20
	DefaultLongTermLimit  = 5
)

type MessageLister interface {
	ListRecent(ctx context.Context, chatID uuid.UUID, limit int) ([]models.Message, error)
}

type Searcher interface {
	Query(ctx context.Context, vec []float32, limit int, f vector.Filter) ([]vector.Match, error)
}

type Assembler struct {
	messages  MessageLister
	index     Searcher
	fetcher   storage.Fetcher
	shortTerm int
	longTerm  int
}

// NewAssembler falls back to the default limits when given zero.
func NewAssembler(messages MessageLister, index Searcher, fetcher storage.Fetcher, shortTerm, longTerm int) *Assembler {
	if shortTerm == 0 {
		shortTerm = DefaultShortTermLimit
	}
	if longTerm == 0 {
		longTerm = DefaultLongTermLimit
	}
	return &Assembler{
		messages:  messages,
		index:     index,
		fetcher:   fetcher,
		shortTerm: shortTerm,
		longTerm:  longTerm,
	}
}

type Request struct {
	UserID int
	ChatID uuid.UUID
	// Query is the embedding of the newest user message; nil skips the long-term lookup.
	Query             []float32
	ExcludeMessageIDs []uuid.UUID
}

type Context struct {
	LongTerm  []vector.Match
	ShortTerm []models.Message
	// Turns is the synthetic long-term turn followed by one turn per short-term message.
	Turns []llm.Turn
}

func (a *Assembler) Assemble(ctx context.Context, req Request) (*Context, error) {
	defer logging.LogDuration(ctx, "memory_assemble")()
	if req.UserID == 0 {
		return nil, vector.ErrUserScopeRequired
	}

	var recent []models.Message
	var related []vector.Match
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := a.messages.ListRecent(gctx, req.ChatID, a.shortTerm)
		if err != nil {
			return fmt.Errorf("list recent messages: %w", err)
		}
		recent = msgs
		return nil
	})
	if req.Query != nil {
		g.Go(func() error {
			matches, err := a.index.Query(gctx, req.Query, a.longTerm, vector.Filter{
				UserID:            req.UserID,
				ExcludeMessageIDs: req.ExcludeMessageIDs,
			})
			if err != nil {
				return fmt.Errorf("query memory index: %w", err)
			}
			related = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	turns := make([]llm.Turn, 0, len(recent)+1)
	turns = append(turns, longTermTurn(related))
	for _, m := range recent {
		if t, ok := a.shortTermTurn(ctx, m); ok {
			turns = append(turns, t)
		}
	}
	return &Context{LongTerm: related, ShortTerm: recent, Turns: turns}, nil
}

func longTermTurn(matches []vector.Match) llm.Turn {
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Metadata.Text)
	}
	return llm.Turn{
		Role:  llm.RoleUser,
		Parts: []llm.Part{llm.TextPart(LongTermPreamble + strings.Join(texts, "\n"))},
	}
}

func roleFor(r models.Role) llm.Role {
	if r == models.RoleUser {
		return llm.RoleUser
	}
	// model and error both read as the assistant's side
	return llm.RoleModel
}

func (a *Assembler) shortTermTurn(ctx context.Context, m models.Message) (llm.Turn, bool) {
	var parts []llm.Part
	if m.Content != nil && *m.Content != "" {
		parts = append(parts, llm.TextPart(*m.Content))
	}
	if m.File && m.FileURL != nil {
		parts = append(parts, a.attachmentPart(ctx, m))
	}
	if len(parts) == 0 {
		return llm.Turn{}, false
	}
	return llm.Turn{Role: roleFor(m.Role), Parts: parts}, true
}

func (a *Assembler) attachmentPart(ctx context.Context, m models.Message) llm.Part {
	mediaType := "application/octet-stream"
	if m.FileType != nil && *m.FileType != "" {
		mediaType = *m.FileType
	}
	if a.fetcher == nil {
		return llm.TextPart(AttachmentUnavailable)
	}
	data, err := a.fetcher.Fetch(ctx, *m.FileURL)
	if err != nil {
		logging.AppLogger.Warn("attachment fetch failed",
			zap.String("message_id", m.ID.String()),
			zap.String("url", *m.FileURL),
			zap.Error(err),
		)
		return llm.TextPart(AttachmentUnavailable)
	}
	return llm.InlinePart(mediaType, base64.StdEncoding.EncodeToString(data))
}
