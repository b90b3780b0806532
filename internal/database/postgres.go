package database

import (
	"fmt"
	"strings"

	"log/slog"

	"chat-sync-service/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewPostgresConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)

	err = db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.Message{},
	)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			slog.Info("Tables already exist, continuing with existing schema")
		} else {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	if err := addIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to add indexes: %w", err)
	}

	return db, nil
}

func addIndexes(db *gorm.DB) error {
	// The unread-count query scans message_reads by (message_id, user_id);
	// make that pair the primary lookup path.
	indexes := []struct {
		name string
		stmt string
	}{
		{"idx_messages_chat_created", "CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at)"},
		{"idx_message_reads_msg_user", "CREATE UNIQUE INDEX IF NOT EXISTS idx_message_reads_msg_user ON message_reads (message_id, user_id)"},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.stmt).Error; err != nil {
			return fmt.Errorf("creating %s: %w", idx.name, err)
		}
	}

	return nil
}
