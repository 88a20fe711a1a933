package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// messageRow is the persisted form of a Message. ID orders a conversation.
type messageRow struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	ChatID      int64  `gorm:"index;not null"`
	Role        string `gorm:"size:16;not null"`
	Content     string `gorm:"type:text"`
	AuthorLabel string `gorm:"size:255"`
}

func (messageRow) TableName() string { return "messages" }

type SQLStore struct {
	db *gorm.DB
}

func OpenSQLStore(path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure sqlite dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return NewSQLStore(db)
}

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&messageRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate messages: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, chatID int64) ([]Message, error) {
	var rows []messageRow
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, Message{Role: r.Role, Content: r.Content, AuthorLabel: r.AuthorLabel})
	}
	return out, nil
}

func (s *SQLStore) Append(ctx context.Context, chatID int64, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	rows := make([]messageRow, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, messageRow{ChatID: chatID, Role: m.Role, Content: m.Content, AuthorLabel: m.AuthorLabel})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to append conversation: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, chatID int64) error {
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&messageRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&messageRow{}).Error; err != nil {
		return fmt.Errorf("failed to clear conversations: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
