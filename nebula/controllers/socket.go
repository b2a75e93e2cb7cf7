package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"nebula/nebula/middlewares"
	"nebula/nebula/services/pipeline"
	"nebula/nebula/utils/logging"
	"nebula/nebula/utils/types"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Inbound event names.
const (
	EventAIMessage = "ai-message"
	EventAIImage   = "ai-image"
)

const (
	defaultWriteTimeout = 10 * time.Second
	invalidRequest      = "Invalid request"
	shuttingDown        = "Server is shutting down"
)

type TurnRunner interface {
	RunTextTurn(ctx context.Context, emit pipeline.Emitter, t pipeline.TextTurn)
	RunImageTurn(ctx context.Context, emit pipeline.Emitter, t pipeline.ImageTurn)
}

// SocketController manages established session channels. Every inbound
// event runs as its own turn; turns on one connection may interleave.
type SocketController struct {
	runner       TurnRunner
	readLimit    int64
	writeTimeout time.Duration

	// base is cancelled by Close and ends every session's read loop.
	base      context.Context
	stop      context.CancelFunc
	closeOnce sync.Once

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
	sessions atomic.Int64
}

// NewSocketController sizes the read limit at twice the base64 size of
// maxAttachmentBytes, so an oversized attachment still arrives as a frame
// and fails only its own turn. Frames beyond the limit close the connection.
func NewSocketController(runner TurnRunner, maxAttachmentBytes int64) *SocketController {
	base, stop := context.WithCancel(context.Background())
	return &SocketController{
		runner:       runner,
		readLimit:    2*(maxAttachmentBytes*4/3) + 64<<10,
		writeTimeout: defaultWriteTimeout,
		base:         base,
		stop:         stop,
	}
}

// Close stops accepting turns and ends every open session. Turns already
// running are left to finish; use Wait for them. Safe to call more than once.
func (c *SocketController) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		c.mu.Unlock()
		c.stop()
		logging.AppLogger.Info("socket controller closed", zap.Int64("open_sessions", c.sessions.Load()))
	})
}

// session is the per-connection Emitter. Writes are serialised and bounded;
// once the connection is gone emits are dropped.
type session struct {
	conn    *websocket.Conn
	id      middlewares.Identity
	timeout time.Duration
	mu      sync.Mutex
	closed  atomic.Bool
}

func (s *session) Emit(event string, payload interface{}) {
	if s.closed.Load() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logging.ErrorLogger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	frame, err := json.Marshal(types.Envelope{Event: event, Data: data})
	if err != nil {
		logging.ErrorLogger.Error("failed to encode envelope", zap.String("event", event), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		s.closed.Store(true)
		logging.AppLogger.Debug("dropping event for closed session",
			zap.String("event", event), zap.Int("user_id", s.id.UserID), zap.Error(err))
	}
}

func (s *session) reject(chatID *uuid.UUID, tempID string) {
	s.Emit(pipeline.EventError, types.AIErrorEvent{Error: invalidRequest, ChatID: chatID, TempID: tempID})
}

// Serve reads events until the connection closes. Turns already started
// keep running after Serve returns.
func (c *SocketController) Serve(ctx context.Context, conn *websocket.Conn, id middlewares.Identity) {
	defer conn.CloseNow()
	conn.SetReadLimit(c.readLimit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := context.AfterFunc(c.base, cancel)
	defer release()

	s := &session{conn: conn, id: id, timeout: c.writeTimeout}
	defer s.closed.Store(true)

	c.sessions.Add(1)
	defer c.sessions.Add(-1)
	logging.AppLogger.Info("session established", zap.Int("user_id", id.UserID))

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				logging.AppLogger.Info("session closed", zap.Int("user_id", id.UserID), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			s.reject(nil, "")
			continue
		}
		c.handle(ctx, s, data)
	}
}

func (c *SocketController) handle(ctx context.Context, s *session, data []byte) {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.reject(nil, "")
		return
	}

	switch env.Event {
	case EventAIMessage:
		var req types.AIMessageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil || req.ChatID == uuid.Nil {
			s.reject(nil, req.TempID)
			return
		}
		turn := pipeline.TextTurn{
			UserID:   s.id.UserID,
			ChatID:   req.ChatID,
			Content:  req.Content,
			File:     req.File,
			FileData: req.FileData,
			FileType: req.FileType,
			TempID:   req.TempID,
		}
		c.dispatch(ctx, s, req.ChatID, req.TempID, func(ctx context.Context) { c.runner.RunTextTurn(ctx, s, turn) })

	case EventAIImage:
		var req types.AIImageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil || req.ChatID == uuid.Nil {
			s.reject(nil, req.TempID)
			return
		}
		turn := pipeline.ImageTurn{
			UserID: s.id.UserID,
			ChatID: req.ChatID,
			Prompt: req.Prompt,
			TempID: req.TempID,
		}
		c.dispatch(ctx, s, req.ChatID, req.TempID, func(ctx context.Context) { c.runner.RunImageTurn(ctx, s, turn) })

	default:
		logging.AppLogger.Info("unknown socket event", zap.String("event", env.Event), zap.Int("user_id", s.id.UserID))
		s.reject(nil, "")
	}
}

// dispatch starts run unless the controller is closing. Add happens under
// mu so it never races a Wait that follows Close.
func (c *SocketController) dispatch(ctx context.Context, s *session, chatID uuid.UUID, tempID string, run func(ctx context.Context)) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		s.Emit(pipeline.EventError, types.AIErrorEvent{Error: shuttingDown, ChatID: &chatID, TempID: tempID})
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer c.inflight.Done()
		run(ctx)
	}()
}

// Sessions reports the number of open connections.
func (c *SocketController) Sessions() int64 {
	return c.sessions.Load()
}

// Wait closes the controller, then blocks until every in-flight turn has
// finished or ctx is done.
func (c *SocketController) Wait(ctx context.Context) error {
	c.Close()
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
