package translator

import (
	"context"
	"time"
)

const (
	zhipuDefaultURL   = "https://open.bigmodel.cn/api/paas/v4"
	zhipuDefaultModel = "glm-4-flash"
)

// ZhipuService translates with a GLM model through Zhipu's chat completions
// endpoint, which speaks the OpenAI wire format.
type ZhipuService struct {
	chat *chatCompletions
}

func NewZhipuService(cfg ServiceConfig) *ZhipuService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = zhipuDefaultURL
	}
	model := cfg.Model
	if model == "" {
		model = zhipuDefaultModel
	}
	return &ZhipuService{
		chat: newChatCompletions("zhipu", baseURL, cfg.APIKey, []string{model}, defaultTimeout(cfg.Timeout, 60*time.Second)),
	}
}

func (s *ZhipuService) Name() string {
	return "zhipu"
}

func (s *ZhipuService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	return s.chat.translate(ctx, req, 0.3)
}

func (s *ZhipuService) IsAvailable(ctx context.Context) error {
	if s.chat.apiKey == "" {
		return configMissing(s.Name(), "Zhipu API key")
	}
	return nil
}
