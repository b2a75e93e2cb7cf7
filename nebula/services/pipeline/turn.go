package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nebula/nebula/services/memory"
	"nebula/nebula/sources/psql/dao"
	"nebula/nebula/sources/psql/models"
	"nebula/nebula/sources/vector"
	"nebula/nebula/utils/logging"
	"nebula/nebula/utils/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunTextTurn runs one text or attachment turn to completion. It never
// returns an error; failures end as a persisted error message plus one
// ai-error event. The turn outlives ctx cancellation.
func (r *Runner) RunTextTurn(ctx context.Context, emit Emitter, t TextTurn) {
	ctx = turnContext(ctx)
	defer logging.LogDuration(ctx, "text_turn")()

	emit.Emit(EventResponseStart, types.TurnStartEvent{ChatID: t.ChatID, TempID: t.TempID})
	if err := r.runText(ctx, emit, t); err != nil {
		r.fail(ctx, emit, t.UserID, t.ChatID, t.TempID, TextFallback, err)
	}
}

// RunImageTurn runs one image generation turn with the same failure contract
// as RunTextTurn.
func (r *Runner) RunImageTurn(ctx context.Context, emit Emitter, t ImageTurn) {
	ctx = turnContext(ctx)
	defer logging.LogDuration(ctx, "image_turn")()

	emit.Emit(EventImageStart, types.TurnStartEvent{ChatID: t.ChatID, TempID: t.TempID})
	if err := r.runImage(ctx, emit, t); err != nil {
		r.fail(ctx, emit, t.UserID, t.ChatID, t.TempID, ImageFallback, err)
	}
}

func turnContext(ctx context.Context) context.Context {
	ctx = context.WithoutCancel(ctx)
	if _, ok := ctx.Value(logging.TraceIDKey).(string); !ok {
		ctx = logging.WithTraceID(ctx, uuid.NewString())
	}
	return ctx
}

func (r *Runner) validate(t TextTurn) error {
	hasFile := t.File || len(t.FileData) > 0
	if strings.TrimSpace(t.Content) == "" && !hasFile {
		return ErrEmptyTurn
	}
	if !hasFile {
		return nil
	}
	if len(t.FileData) == 0 || t.FileType == "" {
		return ErrAttachmentInvalid
	}
	if r.MaxAttachmentBytes > 0 && int64(len(t.FileData)) > r.MaxAttachmentBytes {
		return fmt.Errorf("%w: %d bytes", ErrAttachmentTooLarge, len(t.FileData))
	}
	return nil
}

func (r *Runner) runText(ctx context.Context, emit Emitter, t TextTurn) error {
	if _, err := r.Chats.GetChat(ctx, t.UserID, t.ChatID); err != nil {
		return err
	}
	if err := r.validate(t); err != nil {
		return err
	}

	userMsg := &models.Message{
		UserID: t.UserID,
		ChatID: t.ChatID,
		Role:   models.RoleUser,
	}
	content := strings.TrimSpace(t.Content)
	if content != "" {
		userMsg.Content = &t.Content
	}

	// upload before the message row exists
	if len(t.FileData) > 0 {
		url, err := r.Relay.Store(ctx, t.FileData, t.FileType)
		if err != nil {
			return fmt.Errorf("store attachment: %w", err)
		}
		fileType := t.FileType
		userMsg.File = true
		userMsg.FileURL = &url
		userMsg.FileType = &fileType
	}

	var saved *models.Message
	var queryVec []float32
	var persistErr, embedErr error
	// errors are kept per call; a failed embed must not cancel the persist
	var g errgroup.Group
	g.Go(func() error {
		saved, persistErr = r.Messages.Create(ctx, userMsg)
		return nil
	})
	if content != "" {
		g.Go(func() error {
			queryVec, embedErr = r.Embedder.Embed(ctx, t.Content)
			return nil
		})
	}
	_ = g.Wait()

	if persistErr != nil {
		return fmt.Errorf("persist user message: %w", persistErr)
	}
	emit.Emit(EventUserMessage, types.UserMessageEvent{MessageFromUser: saved, TempID: t.TempID})

	if embedErr != nil {
		return fmt.Errorf("embed user message: %w", embedErr)
	}
	if queryVec != nil {
		err := r.Index.Index(ctx, vector.Entry{
			MessageID: saved.ID,
			Vector:    queryVec,
			Metadata:  vector.Metadata{ChatID: t.ChatID, UserID: t.UserID, Text: t.Content},
		})
		if err != nil {
			return fmt.Errorf("index user message: %w", err)
		}
	}

	assembled, err := r.Assembler.Assemble(ctx, memory.Request{
		UserID:            t.UserID,
		ChatID:            t.ChatID,
		Query:             queryVec,
		ExcludeMessageIDs: []uuid.UUID{saved.ID},
	})
	if err != nil {
		return fmt.Errorf("assemble context: %w", err)
	}

	reply, err := r.Gateway.Generate(ctx, assembled.Turns)
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}

	modelMsg := &models.Message{
		UserID:  t.UserID,
		ChatID:  t.ChatID,
		Role:    models.RoleModel,
		Content: &reply,
	}
	var replyVec []float32
	var replyEmbedErr error
	// as above, the persist outcome decides the turn
	var rg errgroup.Group
	rg.Go(func() error {
		saved, persistErr = r.Messages.Create(ctx, modelMsg)
		return nil
	})
	rg.Go(func() error {
		replyVec, replyEmbedErr = r.Embedder.Embed(ctx, reply)
		return nil
	})
	_ = rg.Wait()

	if persistErr != nil {
		return fmt.Errorf("persist reply: %w", persistErr)
	}
	emit.Emit(EventResponse, types.AIResponseEvent{ResponseToUser: saved})

	// reply memory is best effort
	if replyEmbedErr != nil {
		logging.ErrorLogger.Error("failed to embed reply", turnFields(ctx, t.UserID, t.ChatID, t.TempID, replyEmbedErr)...)
		return nil
	}
	err = r.Index.Index(ctx, vector.Entry{
		MessageID: saved.ID,
		Vector:    replyVec,
		Metadata:  vector.Metadata{ChatID: t.ChatID, UserID: t.UserID, Text: reply},
	})
	if err != nil {
		logging.ErrorLogger.Error("failed to index reply", turnFields(ctx, t.UserID, t.ChatID, t.TempID, err)...)
	}
	return nil
}

func (r *Runner) runImage(ctx context.Context, emit Emitter, t ImageTurn) error {
	if _, err := r.Chats.GetChat(ctx, t.UserID, t.ChatID); err != nil {
		return err
	}
	if strings.TrimSpace(t.Prompt) == "" {
		return ErrEmptyTurn
	}

	prompt := t.Prompt
	saved, err := r.Messages.Create(ctx, &models.Message{
		UserID:  t.UserID,
		ChatID:  t.ChatID,
		Role:    models.RoleUser,
		Content: &prompt,
	})
	if err != nil {
		return fmt.Errorf("persist prompt: %w", err)
	}
	emit.Emit(EventUserMessage, types.UserMessageEvent{MessageFromUser: saved, TempID: t.TempID})

	res, err := r.Images.GenerateImage(ctx, t.Prompt)
	if err != nil {
		return fmt.Errorf("generate image: %w", err)
	}

	fileType := "image/png"
	text := res.Text
	saved, err = r.Messages.Create(ctx, &models.Message{
		UserID:   t.UserID,
		ChatID:   t.ChatID,
		Role:     models.RoleModel,
		Content:  &text,
		File:     true,
		FileURL:  &res.ImageURL,
		FileType: &fileType,
	})
	if err != nil {
		return fmt.Errorf("persist image reply: %w", err)
	}
	emit.Emit(EventImageResponse, types.AIResponseEvent{ResponseToUser: saved})
	return nil
}

// fail is the turn boundary: log the cause, persist one error message when the
// chat is ours, and emit exactly one ai-error.
func (r *Runner) fail(ctx context.Context, emit Emitter, userID int, chatID uuid.UUID, tempID, fallback string, cause error) {
	logging.ErrorLogger.Error("turn failed", turnFields(ctx, userID, chatID, tempID, cause)...)

	var saved *models.Message
	if !errors.Is(cause, dao.ErrChatNotFound) {
		content := fallback
		msg, err := r.Messages.Create(ctx, &models.Message{
			UserID:  userID,
			ChatID:  chatID,
			Role:    models.RoleError,
			Content: &content,
		})
		if err != nil {
			logging.ErrorLogger.Error("failed to persist error message", turnFields(ctx, userID, chatID, tempID, err)...)
		} else {
			saved = msg
		}
	}

	cid := chatID
	emit.Emit(EventError, types.AIErrorEvent{
		Error:   fallback,
		ChatID:  &cid,
		TempID:  tempID,
		Message: saved,
	})
}

func turnFields(ctx context.Context, userID int, chatID uuid.UUID, tempID string, err error) []zap.Field {
	traceID, _ := ctx.Value(logging.TraceIDKey).(string)
	return []zap.Field{
		zap.String("trace_id", traceID),
		zap.Int("user_id", userID),
		zap.String("chat_id", chatID.String()),
		zap.String("temp_id", tempID),
		zap.Error(err),
	}
}
