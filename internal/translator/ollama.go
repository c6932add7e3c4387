package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/dzerkalo/internal/postprocess"
)

var DefaultOllamaModels = []string{
	"qwen2.5:7b",
	"llama3:8b",
	"gemma2:9b",
}

type OllamaTranslator struct {
	baseURL string
	models  []string
	client  *http.Client
}

func NewOllamaTranslator(cfg ServiceConfig) *OllamaTranslator {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	models := splitModels(cfg.Model)
	if len(models) == 0 {
		models = DefaultOllamaModels
	}
	return &OllamaTranslator{
		baseURL: strings.TrimRight(baseURL, "/"),
		models:  models,
		client:  &http.Client{Timeout: defaultTimeout(cfg.Timeout, 120*time.Second)},
	}
}

func (s *OllamaTranslator) Name() string {
	return "ollama"
}

func (s *OllamaTranslator) pickModel() string {
	if len(s.models) == 1 {
		return s.models[0]
	}
	return s.models[rand.Intn(len(s.models))]
}

func (s *OllamaTranslator) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	model := s.pickModel()

	prompt := fmt.Sprintf("%s\n\nText: \"%s\"\n\nTranslation:",
		buildSystemPrompt(req.SourceLang, req.TargetLang, req.Context), req.Text)

	body, pe := postJSON(ctx, s.client, s.Name(), s.baseURL+"/api/generate", map[string]interface{}{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}, nil)
	if pe != nil {
		return fail(result, pe)
	}

	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return fail(result, unparsable(s.Name(), body, err))
	}

	text := postprocess.Clean(ollamaResp.Response)
	if text == "" {
		return fail(result, unparsable(s.Name(), body, nil))
	}

	result.TranslatedText = text
	result.Metadata = map[string]string{"model": model}

	return result, nil
}

func (s *OllamaTranslator) IsAvailable(ctx context.Context) error {
	if _, pe := get(ctx, s.client, s.Name(), s.baseURL+"/api/tags"); pe != nil {
		return pe
	}
	return nil
}

func (s *OllamaTranslator) Models() []string {
	return s.models
}
