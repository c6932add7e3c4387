package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const systranHost = "api-systran-systran-translation-v1.p.rapidapi.com"

type SystranService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewSystranService(cfg ServiceConfig) *SystranService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://" + systranHost
	}
	return &SystranService{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout(cfg.Timeout, 30*time.Second)},
	}
}

func (s *SystranService) Name() string {
	return "systran"
}

func (s *SystranService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if s.apiKey == "" {
		return fail(result, configMissing(s.Name(), "Systran API key"))
	}

	payload := map[string]interface{}{
		"text":   []string{req.Text},
		"source": req.SourceLang,
		"target": req.TargetLang,
		"format": "text",
	}
	body, pe := postJSON(ctx, s.client, s.Name(), s.baseURL+"/translation/text/translate", payload, map[string]string{
		"X-RapidAPI-Key":  s.apiKey,
		"X-RapidAPI-Host": systranHost,
	})
	if pe != nil {
		return fail(result, pe)
	}

	var systranResp struct {
		Outputs []struct {
			Output string `json:"output"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal(body, &systranResp); err != nil {
		return fail(result, unparsable(s.Name(), body, err))
	}

	if len(systranResp.Outputs) == 0 || systranResp.Outputs[0].Output == "" {
		return fail(result, unparsable(s.Name(), body, nil))
	}

	result.TranslatedText = systranResp.Outputs[0].Output
	return result, nil
}

func (s *SystranService) IsAvailable(ctx context.Context) error {
	if s.apiKey == "" {
		return configMissing(s.Name(), "Systran API key")
	}
	return nil
}
