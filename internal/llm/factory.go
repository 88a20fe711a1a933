package llm

import (
	"fmt"
	"strings"

	"gosha-bot/internal/config"
)

// NewClient builds the provider backend selected in cfg.
func NewClient(cfg *config.Config) (Client, error) {
	model := ParseModelRef(cfg.Model)
	switch config.LLMProvider(strings.ToLower(string(cfg.LLMProvider))) {
	case config.ProviderRouter:
		return NewOpenAI(cfg.APIToken, cfg.ProviderBaseURL, model, cfg.MaxNewTokens), nil
	case config.ProviderTextGen:
		return NewTextGen(cfg.TextGenBaseURL, cfg.APIToken, model, cfg.MaxNewTokens), nil
	case config.ProviderYandex:
		return NewYandex(cfg.YandexOAuthToken, cfg.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
}
