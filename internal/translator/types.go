package translator

import (
	"context"
	"time"
)

// ServiceConfig is the per-provider block under providers.<name> in the
// configuration file.
type ServiceConfig struct {
	Enabled     bool          `mapstructure:"enabled" json:"enabled"`
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	AppKey      string        `mapstructure:"app_key" json:"app_key"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Model       string        `mapstructure:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Email       string        `mapstructure:"email" json:"email"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	ProjectID   string        `mapstructure:"project_id" json:"project_id"`
	RateLimit   float64       `mapstructure:"rate_limit" json:"rate_limit"`
	Burst       int           `mapstructure:"burst" json:"burst"`
}

// TranslateRequest is one leg of a round trip: source→pivot or pivot→source.
type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	// Context is reference material for LLM-backed providers. Pure machine
	// translation services ignore it.
	Context string `json:"context,omitempty"`
}

// ServiceResult is what a provider returns for one leg. Metadata carries
// provider-specific details such as the model used or token counts.
type ServiceResult struct {
	ServiceName    string            `json:"service_name"`
	TranslatedText string            `json:"translated_text"`
	Metadata       map[string]string `json:"metadata"`
	Latency        time.Duration     `json:"latency"`
	Cached         bool              `json:"cached"`
	Error          string            `json:"error,omitempty"`
}

// TranslationService is implemented once per external provider. A failed
// Translate returns a *ProviderError and a result whose Error field carries
// the same message.
type TranslationService interface {
	Name() string
	Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error)
	IsAvailable(ctx context.Context) error
}
