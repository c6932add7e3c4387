package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/dzerkalo/internal/placeholder"
	"github.com/valpere/dzerkalo/internal/postprocess"
)

// chatCompletions is the OpenAI-compatible /chat/completions client shared by
// the OpenRouter and Zhipu providers.
type chatCompletions struct {
	provider string
	apiKey   string
	baseURL  string
	models   []string
	client   *http.Client
	headers  map[string]string
}

func newChatCompletions(provider, baseURL, apiKey string, models []string, timeout time.Duration) *chatCompletions {
	return &chatCompletions{
		provider: provider,
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		models:   models,
		client:   &http.Client{Timeout: timeout},
		headers:  map[string]string{},
	}
}

func (c *chatCompletions) pickModel() string {
	if len(c.models) == 1 {
		return c.models[0]
	}
	return c.models[rand.Intn(len(c.models))]
}

func (c *chatCompletions) translate(ctx context.Context, req TranslateRequest, temperature float64) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: c.provider}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if c.apiKey == "" {
		return fail(result, configMissing(c.provider, "API key"))
	}

	model := c.pickModel()
	content, usage, err := c.complete(ctx, model, buildSystemPrompt(req.SourceLang, req.TargetLang, req.Context), req.Text, temperature)
	if err != nil {
		return fail(result, AsProviderError(c.provider, err))
	}

	result.TranslatedText = content
	result.Metadata = map[string]string{
		"model":             model,
		"prompt_tokens":     fmt.Sprintf("%d", usage.PromptTokens),
		"completion_tokens": fmt.Sprintf("%d", usage.CompletionTokens),
	}
	return result, nil
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// complete sends one system+user exchange and returns the cleaned reply.
func (c *chatCompletions) complete(ctx context.Context, model, system, user string, temperature float64) (string, chatUsage, error) {
	messages := []map[string]string{}
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": user})

	chatReq := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"max_tokens":  4096,
		"temperature": temperature,
	}

	header := map[string]string{"Authorization": "Bearer " + c.apiKey}
	for k, v := range c.headers {
		header[k] = v
	}
	body, pe := postJSON(ctx, c.client, c.provider, c.baseURL+"/chat/completions", chatReq, header)
	if pe != nil {
		return "", chatUsage{}, pe
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage chatUsage `json:"usage"`
	}
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", chatUsage{}, unparsable(c.provider, body, err)
	}

	if len(chatResp.Choices) == 0 {
		return "", chatUsage{}, unparsable(c.provider, body, nil)
	}

	content := postprocess.Clean(chatResp.Choices[0].Message.Content)
	if content == "" {
		return "", chatUsage{}, unparsable(c.provider, body, nil)
	}
	return content, chatResp.Usage, nil
}

// buildSystemPrompt constructs the system prompt for LLM-backed providers,
// optionally injecting retrieved reference material.
func buildSystemPrompt(sourceLang, targetLang, reference string) string {
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "the detected language"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are a professional translator. Translate the following text from %s to %s.\n", sourceLang, targetLang))
	sb.WriteString("Only respond with the translation, nothing else. No explanations, no quotes, just the translation.")
	sb.WriteString(" ")
	sb.WriteString(placeholder.Instruction)

	if reference != "" {
		sb.WriteString("\n\nREFERENCE (related material for terminology and style; do NOT translate this):\n")
		sb.WriteString(reference)
	}

	return sb.String()
}
