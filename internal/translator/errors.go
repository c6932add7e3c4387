package translator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind is the shared failure vocabulary every provider maps onto.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindConfigMissing
	KindAuthFailure
	KindRateLimited
	KindTimeout
	KindUnparsable
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfigMissing:
		return "config_missing"
	case KindAuthFailure:
		return "auth_failure"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindUnparsable:
		return "unparsable"
	default:
		return "transient"
	}
}

// ProviderError is returned by every TranslationService on failure.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
	// RawBody holds the response body for KindUnparsable.
	RawBody string
	Err     error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches another *ProviderError by kind, so errors.Is(err,
// &ProviderError{Kind: KindTimeout}) works regardless of provider.
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Provider == "" || t.Provider == e.Provider)
}

func newError(provider string, kind ErrorKind, format string, args ...any) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func configMissing(provider, what string) *ProviderError {
	return newError(provider, KindConfigMissing, "%s not configured", what)
}

func unparsable(provider string, body []byte, err error) *ProviderError {
	pe := &ProviderError{Provider: provider, Kind: KindUnparsable, RawBody: truncate(string(body), 512), Err: err}
	if err != nil {
		pe.Message = fmt.Sprintf("failed to decode response: %v", err)
	} else {
		pe.Message = "response did not contain a translation"
	}
	return pe
}

// classifyStatus maps a non-200 HTTP status onto the shared taxonomy.
func classifyStatus(provider string, status int, body []byte) *ProviderError {
	msg := fmt.Sprintf("API returned status %d", status)
	if len(body) > 0 {
		msg += ": " + truncate(string(body), 256)
	}
	kind := KindTransient
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuthFailure
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	}
	return &ProviderError{Provider: provider, Kind: kind, Message: msg}
}

// classifyTransport maps a client.Do / SDK error onto the taxonomy.
func classifyTransport(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	kind := KindTransient
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &ProviderError{Provider: provider, Kind: kind, Message: fmt.Sprintf("request failed: %v", err), Err: err}
}

// AsProviderError returns err as a *ProviderError, wrapping foreign errors.
func AsProviderError(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	return classifyTransport(provider, err)
}

// fail records pe on result and returns both, which is the shape every
// provider's Translate ends with on error.
func fail(result *ServiceResult, pe *ProviderError) (*ServiceResult, error) {
	result.Error = pe.Error()
	return result, pe
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
