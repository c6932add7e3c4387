package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

func defaultTimeout(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// send performs req and returns the body of a 200 response. Every failure
// is already mapped onto the provider error taxonomy.
func send(client *http.Client, provider string, req *http.Request) ([]byte, *ProviderError) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransport(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(provider, resp.StatusCode, body)
	}
	return body, nil
}

func newRequest(ctx context.Context, provider, method, endpoint string, body io.Reader, header map[string]string) (*http.Request, *ProviderError) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, newError(provider, KindTransient, "build request: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	return req, nil
}

func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, payload any, header map[string]string) ([]byte, *ProviderError) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(provider, KindTransient, "encode request: %v", err)
	}
	req, pe := newRequest(ctx, provider, http.MethodPost, endpoint, bytes.NewReader(data), header)
	if pe != nil {
		return nil, pe
	}
	req.Header.Set("Content-Type", "application/json")
	return send(client, provider, req)
}

func postForm(ctx context.Context, client *http.Client, provider, endpoint string, form url.Values) ([]byte, *ProviderError) {
	req, pe := newRequest(ctx, provider, http.MethodPost, endpoint, strings.NewReader(form.Encode()), nil)
	if pe != nil {
		return nil, pe
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return send(client, provider, req)
}

func get(ctx context.Context, client *http.Client, provider, endpoint string) ([]byte, *ProviderError) {
	req, pe := newRequest(ctx, provider, http.MethodGet, endpoint, nil, nil)
	if pe != nil {
		return nil, pe
	}
	return send(client, provider, req)
}
