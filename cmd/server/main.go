package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"chat-sync-service/internal/api/routes"
	"chat-sync-service/internal/config"
	"chat-sync-service/internal/database"
	"chat-sync-service/internal/notifier"
	"chat-sync-service/internal/realtime"
	"chat-sync-service/internal/services"
	"chat-sync-service/internal/store/postgres"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting chat sync server")

	// Redis: best-effort presence mirror; the server runs without it
	var presence *services.PresenceCache
	redisClient, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis, presence mirror disabled", "error", err)
	} else {
		defer redisClient.Close()
		presence = services.NewPresenceCache(redisClient)
	}

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepository(db)
	chatRepo := postgres.NewChatRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	var push notifier.Notifier = notifier.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		pushNotifier := notifier.NewPushNotifier(cfg.Kafka.Brokers, cfg.Kafka.PushTopic)
		defer pushNotifier.Close()
		push = pushNotifier
	} else {
		slog.Warn("No Kafka brokers configured, push notifications disabled")
	}

	hub := realtime.NewHub(cfg.Liveness, userRepo, chatRepo, messageRepo, presence, push)
	go hub.Run()

	router := routes.NewRouter(hub, presence, cfg.JWT.Secret)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
