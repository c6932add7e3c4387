package translator

import (
	"context"
	"strings"
	"time"
)

var DefaultOpenRouterModels = []string{
	"google/gemini-2.0-flash-exp:free",
	"qwen/qwen2.5-72b-instruct:free",
	"mistralai/mistral-nemo:free",
	"meta-llama/llama-3.1-8b-instruct:free",
}

type OpenRouterService struct {
	chat *chatCompletions
}

// NewOpenRouterService builds the provider. cfg.Model may hold a
// comma-separated list of models; one is picked at random per call.
func NewOpenRouterService(cfg ServiceConfig) *OpenRouterService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	models := splitModels(cfg.Model)
	if len(models) == 0 {
		models = DefaultOpenRouterModels
	}
	chat := newChatCompletions("openrouter", baseURL, cfg.APIKey, models, defaultTimeout(cfg.Timeout, 120*time.Second))
	chat.headers["HTTP-Referer"] = "https://dzerkalo.local"
	chat.headers["X-Title"] = "Dzerkalo"
	return &OpenRouterService{chat: chat}
}

func (s *OpenRouterService) Name() string {
	return "openrouter"
}

func (s *OpenRouterService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	return s.chat.translate(ctx, req, 0.3)
}

func (s *OpenRouterService) IsAvailable(ctx context.Context) error {
	if s.chat.apiKey == "" {
		return configMissing(s.Name(), "OpenRouter API key")
	}
	return nil
}

func (s *OpenRouterService) Models() []string {
	return s.chat.models
}

func splitModels(s string) []string {
	var out []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
