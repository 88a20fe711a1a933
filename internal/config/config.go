package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderRouter  LLMProvider = "router"
	ProviderTextGen LLMProvider = "textgen"
	ProviderYandex  LLMProvider = "yandex"
)

type PrivateChatMode string

const (
	PrivateRefuse PrivateChatMode = "refuse"
	PrivateAnswer PrivateChatMode = "answer"
)

type ForgetScope string

const (
	ForgetAll  ForgetScope = "all"
	ForgetChat ForgetScope = "chat"
)

type Config struct {
	TelegramBotToken string          `env:"BOT_TOKEN,required"`
	AdminUsernames   []string        `env:"ADMIN_USERNAMES" envSeparator:","`
	PrivateChatMode  PrivateChatMode `env:"PRIVATE_CHAT_MODE" envDefault:"refuse"`
	ForgetScope      ForgetScope     `env:"FORGET_SCOPE" envDefault:"all"`
	Workers          int             `env:"WORKERS" envDefault:"4"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"router"`
	APIToken         string      `env:"API_TOKEN,required"`
	Model            string      `env:"MODEL,required"`
	ProviderBaseURL  string      `env:"PROVIDER_BASE_URL" envDefault:"https://router.huggingface.co/v1"`
	TextGenBaseURL   string      `env:"TEXTGEN_BASE_URL" envDefault:"https://api-inference.huggingface.co"`
	MaxNewTokens     int         `env:"MAX_NEW_TOKENS" envDefault:"1024"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// Gateway
	GatewayMaxInflight    int64         `env:"GATEWAY_MAX_INFLIGHT" envDefault:"1"`
	GatewayQueueTimeout   time.Duration `env:"GATEWAY_QUEUE_TIMEOUT" envDefault:"2m"`
	GatewayRequestTimeout time.Duration `env:"GATEWAY_REQUEST_TIMEOUT" envDefault:"90s"`

	// Context budget
	HistoryLimit     int               `env:"HISTORY_LIMIT" envDefault:"20"`
	BudgetTokens     int               `env:"CONTEXT_BUDGET_TOKENS" envDefault:"1500"`
	CharsPerToken    int               `env:"CHARS_PER_TOKEN" envDefault:"4"`
	SystemMaxChars   int               `env:"SYSTEM_MAX_CHARS" envDefault:"2000"`
	MessageMaxChars  int               `env:"MESSAGE_MAX_CHARS" envDefault:"1500"`
	MinSystemChars   int               `env:"MIN_SYSTEM_CHARS" envDefault:"64"`
	TruncationPolicy map[string]string `env:"TRUNCATION_POLICY" envSeparator:"," envKeyValSeparator:":" envDefault:"system:head,user:tail,assistant:tail"`

	// Persona and side files
	PersonaFilePath  string `env:"PERSONA_FILE_PATH" envDefault:"prompts/persona.yaml"`
	ProfilesFilePath string `env:"PROFILES_FILE_PATH" envDefault:"data/profiles.csv"`

	Storage

	// OCR
	OCRLanguages  string        `env:"OCR_LANGUAGES" envDefault:"rus+eng"`
	TesseractPath string        `env:"TESSERACT_PATH" envDefault:"tesseract"`
	OCRTimeout    time.Duration `env:"OCR_TIMEOUT" envDefault:"30s"`
	MaxPhotoBytes int64         `env:"MAX_PHOTO_BYTES" envDefault:"20971520"`

	// Formatting
	MathRenderURL string `env:"MATH_RENDER_URL"`

	// Reports and admin surface
	ReportChatID   int64  `env:"REPORT_CHAT_ID"`
	ReportCron     string `env:"REPORT_CRON" envDefault:"0 21 * * *"`
	AdminHTTPAddr  string `env:"ADMIN_HTTP_ADDR"`
	AdminHTTPToken string `env:"ADMIN_HTTP_TOKEN"`

	Logging
}

// Storage groups the settings of every persistent file or database.
type Storage struct {
	StoreDriver     string `env:"STORE_DRIVER" envDefault:"file"`
	StoreFilePath   string `env:"STORE_FILE_PATH" envDefault:"data/memory.json"`
	SQLitePath      string `env:"SQLITE_PATH" envDefault:"data/memory.db"`
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix     string `env:"REDIS_PREFIX" envDefault:"gosha"`
	JournalFilePath string `env:"JOURNAL_FILE_PATH" envDefault:"logs/journal.jsonl"`
	AdminsFilePath  string `env:"ADMINS_FILE_PATH" envDefault:"data/admins.json"`
}

type Logging struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load parses the process environment. A missing required variable is an error.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSection parses one settings group, such as Storage, without requiring
// the credentials of the full Config. Maintenance commands use it.
func LoadSection[T any]() (*T, error) {
	section := new(T)
	if err := env.Parse(section); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return section, nil
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderRouter, ProviderTextGen:
	case ProviderYandex:
		if c.YandexOAuthToken == "" || c.YandexFolderID == "" {
			return errors.New("yandex provider requires YANDEX_OAUTH_TOKEN and YANDEX_FOLDER_ID")
		}
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLMProvider)
	}
	switch c.PrivateChatMode {
	case PrivateRefuse, PrivateAnswer:
	default:
		return fmt.Errorf("unknown private chat mode: %s", c.PrivateChatMode)
	}
	switch c.ForgetScope {
	case ForgetAll, ForgetChat:
	default:
		return fmt.Errorf("unknown forget scope: %s", c.ForgetScope)
	}
	if c.GatewayMaxInflight < 1 {
		return fmt.Errorf("GATEWAY_MAX_INFLIGHT must be positive, got %d", c.GatewayMaxInflight)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}

// BudgetChars is the approximate context budget in characters.
func (c *Config) BudgetChars() int {
	return c.BudgetTokens * c.CharsPerToken
}

// Admins returns the normalized admin allow-list.
func (c *Config) Admins() []string {
	out := make([]string, 0, len(c.AdminUsernames))
	for _, u := range c.AdminUsernames {
		u = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(u), "@"))
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}
