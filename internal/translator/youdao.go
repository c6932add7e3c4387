package translator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const youdaoDefaultURL = "https://openapi.youdao.com/api"

// youdaoAuthCodes and youdaoRateCodes are the errorCode values Youdao uses
// for credential and throttling problems; everything else is transient.
var (
	youdaoAuthCodes = map[string]bool{"108": true, "111": true, "202": true, "401": true}
	youdaoRateCodes = map[string]bool{"411": true, "412": true}
)

// YoudaoService calls the Youdao text translation API with v3 (SHA-256)
// request signing.
type YoudaoService struct {
	appKey    string
	appSecret string
	baseURL   string
	client    *http.Client

	now  func() time.Time
	salt func() string
}

func NewYoudaoService(cfg ServiceConfig) *YoudaoService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = youdaoDefaultURL
	}
	return &YoudaoService{
		appKey:    cfg.AppKey,
		appSecret: cfg.APIKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: defaultTimeout(cfg.Timeout, 30*time.Second)},
		now:       time.Now,
		salt:      uuid.NewString,
	}
}

func (s *YoudaoService) Name() string {
	return "youdao"
}

func (s *YoudaoService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if s.appKey == "" || s.appSecret == "" {
		return fail(result, configMissing(s.Name(), "Youdao app key and secret"))
	}

	salt := s.salt()
	curtime := strconv.FormatInt(s.now().Unix(), 10)

	form := url.Values{}
	form.Set("q", req.Text)
	form.Set("from", youdaoLang(req.SourceLang))
	form.Set("to", youdaoLang(req.TargetLang))
	form.Set("appKey", s.appKey)
	form.Set("salt", salt)
	form.Set("sign", youdaoSign(s.appKey, req.Text, salt, curtime, s.appSecret))
	form.Set("signType", "v3")
	form.Set("curtime", curtime)

	body, pe := postForm(ctx, s.client, s.Name(), s.baseURL, form)
	if pe != nil {
		return fail(result, pe)
	}

	var youdaoResp struct {
		ErrorCode   string   `json:"errorCode"`
		Translation []string `json:"translation"`
		L           string   `json:"l"`
	}
	if err := json.Unmarshal(body, &youdaoResp); err != nil {
		return fail(result, unparsable(s.Name(), body, err))
	}

	if youdaoResp.ErrorCode != "" && youdaoResp.ErrorCode != "0" {
		kind := KindTransient
		switch {
		case youdaoAuthCodes[youdaoResp.ErrorCode]:
			kind = KindAuthFailure
		case youdaoRateCodes[youdaoResp.ErrorCode]:
			kind = KindRateLimited
		}
		return fail(result, newError(s.Name(), kind, "API error code %s", youdaoResp.ErrorCode))
	}

	if len(youdaoResp.Translation) == 0 || youdaoResp.Translation[0] == "" {
		return fail(result, unparsable(s.Name(), body, nil))
	}

	result.TranslatedText = youdaoResp.Translation[0]
	result.Metadata = map[string]string{"direction": youdaoResp.L}

	return result, nil
}

func (s *YoudaoService) IsAvailable(ctx context.Context) error {
	if s.appKey == "" || s.appSecret == "" {
		return configMissing(s.Name(), "Youdao app key and secret")
	}
	return nil
}

// youdaoSign computes the v3 signature:
// sha256(appKey + input + salt + curtime + secret), where input is q itself
// when q has at most 20 runes, otherwise its first 10 runes, its rune count
// and its last 10 runes.
func youdaoSign(appKey, q, salt, curtime, secret string) string {
	sum := sha256.Sum256([]byte(appKey + youdaoInput(q) + salt + curtime + secret))
	return hex.EncodeToString(sum[:])
}

func youdaoInput(q string) string {
	r := []rune(q)
	if len(r) <= 20 {
		return q
	}
	return fmt.Sprintf("%s%d%s", string(r[:10]), len(r), string(r[len(r)-10:]))
}

// youdaoLang maps ISO codes onto Youdao's vocabulary.
func youdaoLang(lang string) string {
	switch strings.ToLower(lang) {
	case "", "auto":
		return "auto"
	case "zh", "zh-cn", "zh-hans", "zh-chs":
		return "zh-CHS"
	case "zh-tw", "zh-hant", "zh-cht":
		return "zh-CHT"
	default:
		return lang
	}
}
