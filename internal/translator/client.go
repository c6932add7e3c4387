package translator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/valpere/dzerkalo/internal/cache"
)

// Client wraps a TranslationService with the shared result cache, a
// per-provider rate limiter, and one-shot ConfigMissing reporting.
//
// Clients are built once at start-up and shared by every request.
type Client struct {
	svc     TranslationService
	cache   cache.Cache
	limiter *rate.Limiter
	log     logrus.FieldLogger

	// unusable is set the first time the service reports KindConfigMissing;
	// later calls fail fast with the same error.
	unusable atomic.Pointer[ProviderError]
}

type ClientOption func(*Client)

// WithRateLimit allows at most perSecond calls per second with the given
// burst. perSecond <= 0 disables limiting.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient wraps svc. A nil cache disables caching.
func NewClient(svc TranslationService, c cache.Cache, opts ...ClientOption) *Client {
	cl := &Client{
		svc:   svc,
		cache: c,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

func (c *Client) Name() string {
	return c.svc.Name()
}

func (c *Client) IsAvailable(ctx context.Context) error {
	if pe := c.unusable.Load(); pe != nil {
		return pe
	}
	return c.svc.IsAvailable(ctx)
}

// Translate answers from the cache when possible; otherwise it calls the
// provider and stores a successful result.
func (c *Client) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	name := c.svc.Name()
	key := cache.NewKey(name, req.SourceLang, req.TargetLang, req.Text)

	if c.cache != nil {
		if text, ok := c.cache.Get(ctx, key); ok {
			return &ServiceResult{ServiceName: name, TranslatedText: text, Cached: true}, nil
		}
	}

	if pe := c.unusable.Load(); pe != nil {
		return fail(&ServiceResult{ServiceName: name}, pe)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			kind := KindRateLimited
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				kind = KindTimeout
			}
			return fail(&ServiceResult{ServiceName: name}, &ProviderError{
				Provider: name, Kind: kind, Message: "waiting for rate limiter: " + err.Error(), Err: err,
			})
		}
	}

	start := time.Now()
	res, err := c.svc.Translate(ctx, req)
	if err != nil {
		pe := AsProviderError(name, err)
		if pe.Kind == KindConfigMissing && c.unusable.CompareAndSwap(nil, pe) {
			c.log.WithField("provider", name).Warnf("provider disabled: %s", pe.Message)
		}
		if res == nil {
			res = &ServiceResult{ServiceName: name}
		}
		return fail(res, pe)
	}

	c.log.WithFields(logrus.Fields{
		"provider": name,
		"from":     req.SourceLang,
		"to":       req.TargetLang,
		"latency":  time.Since(start).Round(time.Millisecond),
	}).Debug("translated")

	if c.cache != nil {
		c.cache.Set(ctx, key, res.TranslatedText)
	}
	return res, nil
}
