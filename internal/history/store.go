package history

import (
	"context"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged conversation entry. Entries are never modified after Append.
type Message struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	AuthorLabel string `json:"author_label,omitempty"`
}

func User(label, content string) Message {
	return Message{Role: RoleUser, Content: content, AuthorLabel: label}
}

func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Store keeps ordered per-chat conversations.
// Append is atomic per conversation: concurrent appends never lose entries.
// Get returns a copy that callers may modify.
type Store interface {
	Get(ctx context.Context, chatID int64) ([]Message, error)
	Append(ctx context.Context, chatID int64, msgs ...Message) error
	Delete(ctx context.Context, chatID int64) error
	Clear(ctx context.Context) error
	Close() error
}

const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type Options struct {
	Driver     string
	FilePath   string
	SQLitePath string
	Redis      RedisOptions
}

// Open creates the store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile, "":
		return OpenFileStore(opts.FilePath)
	case DriverRedis:
		return OpenRedisStore(ctx, opts.Redis)
	case DriverSQLite:
		return OpenSQLStore(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", opts.Driver)
	}
}
