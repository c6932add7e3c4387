package translator

import (
	"context"
	"sync"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleService uses the Cloud Translation v2 client. The client is created
// on first use and reused; credentials come from cfg.Credentials or the
// ambient application-default credentials.
type GoogleService struct {
	credentials string
	endpoint    string

	mu     sync.Mutex
	client *translate.Client
}

func NewGoogleService(cfg ServiceConfig) *GoogleService {
	return &GoogleService{credentials: cfg.Credentials, endpoint: cfg.BaseURL}
}

func (s *GoogleService) Name() string {
	return "google"
}

func (s *GoogleService) getClient(ctx context.Context) (*translate.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	opts := []option.ClientOption{}
	if s.credentials != "" {
		opts = append(opts, option.WithCredentialsFile(s.credentials))
	}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint), option.WithoutAuthentication())
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, newError(s.Name(), KindConfigMissing, "failed to create client: %v", err)
	}
	s.client = client
	return client, nil
}

func (s *GoogleService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	targetLangTag, err := language.Parse(req.TargetLang)
	if err != nil {
		return fail(result, newError(s.Name(), KindTransient, "invalid target language %q: %v", req.TargetLang, err))
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return fail(result, AsProviderError(s.Name(), err))
	}

	var opts *translate.Options
	if req.SourceLang != "" && req.SourceLang != "auto" {
		sourceLangTag, err := language.Parse(req.SourceLang)
		if err != nil {
			return fail(result, newError(s.Name(), KindTransient, "invalid source language %q: %v", req.SourceLang, err))
		}
		opts = &translate.Options{Source: sourceLangTag, Format: translate.Text}
	}

	translations, err := client.Translate(ctx, []string{req.Text}, targetLangTag, opts)
	if err != nil {
		return fail(result, classifyTransport(s.Name(), err))
	}

	if len(translations) == 0 || translations[0].Text == "" {
		return fail(result, unparsable(s.Name(), nil, nil))
	}

	result.TranslatedText = translations[0].Text
	if translations[0].Source != language.Und {
		result.Metadata = map[string]string{"detected_source": translations[0].Source.String()}
	}

	return result, nil
}

func (s *GoogleService) IsAvailable(ctx context.Context) error {
	_, err := s.getClient(ctx)
	return err
}

// Close releases the underlying client, if one was created.
func (s *GoogleService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
