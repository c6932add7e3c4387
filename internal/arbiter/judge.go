package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OllamaRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type OllamaResponse struct {
	Response string `json:"response"`
}

// OllamaJudge runs the judge prompt on a local Ollama model via
// /api/generate.
type OllamaJudge struct {
	model   string
	baseURL string
	client  *http.Client
}

func NewOllamaJudge(model, baseURL string, timeout time.Duration) *OllamaJudge {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "qwen2.5:7b"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaJudge{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (j *OllamaJudge) Name() string {
	return "ollama:" + j.model
}

func (j *OllamaJudge) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := OllamaRequest{
		Model:   j.model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]interface{}{"temperature": 0.3},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("judge returned status %d", resp.StatusCode)
	}

	var ollamaResp OllamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return ollamaResp.Response, nil
}

// ChatJudge runs the judge prompt through an OpenAI-compatible
// /chat/completions endpoint.
type ChatJudge struct {
	name    string
	model   string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewChatJudge(name, baseURL, apiKey, model string, timeout time.Duration) *ChatJudge {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatJudge{
		name:    name,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewZhipuJudge judges with GLM on Zhipu's platform.
func NewZhipuJudge(apiKey, model string, timeout time.Duration) *ChatJudge {
	if model == "" {
		model = "glm-4-flash"
	}
	return NewChatJudge("zhipu", "https://open.bigmodel.cn/api/paas/v4", apiKey, model, timeout)
}

// NewOpenRouterJudge judges with a model hosted on OpenRouter.
func NewOpenRouterJudge(apiKey, model string, timeout time.Duration) *ChatJudge {
	if model == "" {
		model = "qwen/qwen2.5-72b-instruct:free"
	}
	return NewChatJudge("openrouter", "https://openrouter.ai/api/v1", apiKey, model, timeout)
}

func (j *ChatJudge) Name() string {
	return j.name + ":" + j.model
}

func (j *ChatJudge) Generate(ctx context.Context, prompt string) (string, error) {
	if j.apiKey == "" {
		return "", fmt.Errorf("%s judge: API key not configured", j.name)
	}

	chatReq := map[string]interface{}{
		"model": j.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.3,
		"max_tokens":  2000,
	}

	jsonData, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("judge returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("judge returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}
