package services

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"chat-sync-service/internal/database"
)

// PresenceCache mirrors the in-process connection registry into Redis so
// sibling instances and HTTP-only services can answer "is this user online".
// It is advisory state: every write is best-effort and callers only log
// failures.
type PresenceCache struct {
	client *database.RedisClient
}

func NewPresenceCache(client *database.RedisClient) *PresenceCache {
	return &PresenceCache{client: client}
}

func (p *PresenceCache) SetUserOnline(ctx context.Context, userID uint) error {
	pipe := p.client.GetClient().Pipeline()

	pipe.SAdd(ctx, "online_users", userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%d:status", userID), map[string]interface{}{
		"status":     "online",
		"last_seen":  time.Now().Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%d:status", userID), 5*time.Minute)

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("Failed to set user online", "userID", userID, "error", err)
		return err
	}

	slog.Debug("User set to online", "userID", userID)
	return nil
}

func (p *PresenceCache) SetUserOffline(ctx context.Context, userID uint) error {
	pipe := p.client.GetClient().Pipeline()

	pipe.SRem(ctx, "online_users", userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%d:status", userID), map[string]interface{}{
		"status":     "offline",
		"last_seen":  time.Now().Unix(),
		"updated_at": time.Now().Unix(),
	})
	// Keep offline status around longer for last-seen lookups
	pipe.Expire(ctx, fmt.Sprintf("user:%d:status", userID), 24*time.Hour)

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("Failed to set user offline", "userID", userID, "error", err)
		return err
	}

	slog.Debug("User set to offline", "userID", userID)
	return nil
}

func (p *PresenceCache) IsUserOnline(ctx context.Context, userID uint) (bool, error) {
	return p.client.GetClient().SIsMember(ctx, "online_users", userID).Result()
}

func (p *PresenceCache) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return p.client.GetClient().SMembers(ctx, "online_users").Result()
}
