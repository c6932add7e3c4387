// Package embedding turns texts into dense vectors for the knowledge-base
// index.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Embedder produces one vector per input text, in input order. All vectors
// returned by one Embedder have the same dimension.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config selects and configures an embedder backend.
type Config struct {
	Backend string        `mapstructure:"backend"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Dim     int           `mapstructure:"dim"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// New builds the backend named by cfg.Backend: "hash" (default), "ollama"
// or "openai".
func New(cfg Config) (Embedder, error) {
	switch cfg.Backend {
	case "", "hash":
		return NewHashEmbedder(cfg.Dim), nil
	case "ollama":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}
}

// Warm issues one embedding call so that model loading happens at start-up
// rather than on the first user request.
func Warm(ctx context.Context, e Embedder, log logrus.FieldLogger) error {
	start := time.Now()
	if _, err := e.Embed(ctx, []string{"warm-up"}); err != nil {
		return fmt.Errorf("warm up %s embedder: %w", e.Name(), err)
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"embedder": e.Name(),
			"elapsed":  time.Since(start).Round(time.Millisecond),
		}).Debug("embedder ready")
	}
	return nil
}
