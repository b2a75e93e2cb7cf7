package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nebula/nebula/config"
	"nebula/nebula/controllers"
	"nebula/nebula/middlewares"
	"nebula/nebula/routes"
	"nebula/nebula/services/embeddings"
	"nebula/nebula/services/llm"
	"nebula/nebula/services/memory"
	"nebula/nebula/services/pipeline"
	"nebula/nebula/sources/psql"
	"nebula/nebula/sources/psql/dao"
	"nebula/nebula/sources/storage"
	"nebula/nebula/sources/vector"
	"nebula/nebula/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "failed to read .env:", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	if err := logging.InitLogger(cfg.LogDir); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := run(cfg); err != nil {
		logging.ErrorLogger.Error("server stopped", zap.Error(err))
		logging.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := psql.NewDatabase(startCtx, cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	index, err := newIndex(startCtx, cfg, db)
	if err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	defer index.Close()

	relay, err := newRelay(startCtx, cfg)
	if err != nil {
		return fmt.Errorf("attachment relay: %w", err)
	}
	fetcher, err := storage.NewHTTPFetcher(nil, cfg.AttachmentCacheBytes, cfg.MaxAttachmentBytes)
	if err != nil {
		return fmt.Errorf("attachment fetcher: %w", err)
	}
	defer fetcher.Close()

	embedder, err := embeddings.New(cfg)
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	gateway, err := llm.NewGateway(cfg)
	if err != nil {
		return fmt.Errorf("generation gateway: %w", err)
	}

	userDAO := dao.NewUserDAO(db.DB)
	chatDAO := dao.NewChatDAO(db.DB)
	messageDAO := dao.NewMessageDAO(db.DB)

	runner := &pipeline.Runner{
		Chats:              chatDAO,
		Messages:           messageDAO,
		Embedder:           embedder,
		Index:              index,
		Assembler:          memory.NewAssembler(messageDAO, index, fetcher, cfg.ShortTermLimit, cfg.LongTermLimit),
		Gateway:            gateway,
		Images:             llm.NewHFImageClient(cfg.HFBaseURL, cfg.HFToken, cfg.HFModel, relay),
		Relay:              relay,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
	}

	auth := middlewares.NewAuthenticator(cfg, userDAO)
	authCtrl := controllers.NewAuthController(userDAO, cfg)
	userCtrl := controllers.NewUserController(userDAO)
	chatCtrl := controllers.NewChatController(chatDAO, messageDAO, index)
	healthCtrl := controllers.NewHealthController(sqlDB)
	socketCtrl := controllers.NewSocketController(runner, cfg.MaxAttachmentBytes)

	origins := middlewares.SplitOrigins(cfg.CORSOrigin)
	secureCookie := len(origins) > 0 && strings.HasPrefix(origins[0], "https://")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.CORS(origins))

	// sockets are long lived and stay outside the request timeout
	r.Mount("/socket", routes.SocketRoutes(socketCtrl, auth, middlewares.OriginPatterns(origins)))
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(60 * time.Second))
		gr.Mount("/health", routes.HealthRoutes(healthCtrl))
		gr.Mount("/api/auth", routes.AuthRoutes(authCtrl, auth, secureCookie))
		gr.Mount("/api/user", routes.UserRoutes(userCtrl, auth, secureCookie))
		gr.Mount("/api/chat", routes.ChatRoutes(chatCtrl, auth))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown does not track hijacked connections; end sessions explicitly.
	srv.RegisterOnShutdown(socketCtrl.Close)
	errCh := make(chan error, 1)
	go func() {
		logging.AppLogger.Info("server listening",
			zap.String("addr", cfg.Addr),
			zap.String("llm_provider", cfg.LLMProvider),
			zap.String("vector_backend", cfg.VectorBackend),
			zap.String("storage_driver", cfg.StorageDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.AppLogger.Info("shutting down", zap.Int64("open_sessions", socketCtrl.Sessions()))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	socketCtrl.Close()
	if err := socketCtrl.Wait(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("in-flight turns did not finish", zap.Error(err))
	}
	logging.AppLogger.Info("server shutdown complete")
	return nil
}

func newIndex(ctx context.Context, cfg config.Config, db *psql.Database) (vector.Index, error) {
	switch cfg.VectorBackend {
	case "pgvector":
		return vector.NewPGVectorIndex(ctx, db.DB)
	default:
		return vector.NewChromemIndex(), nil
	}
}

func newRelay(ctx context.Context, cfg config.Config) (storage.Relay, error) {
	switch cfg.StorageDriver {
	case "s3":
		return storage.NewS3Relay(ctx, cfg)
	default:
		return storage.NewMinIORelay(ctx, cfg)
	}
}
