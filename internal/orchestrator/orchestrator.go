// Package orchestrator runs the mirror-translation pipeline: every selected
// provider translates the text into a pivot language and back, and the
// arbiter judges each round trip against the original.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/valpere/dzerkalo/internal/arbiter"
	"github.com/valpere/dzerkalo/internal/detector"
	"github.com/valpere/dzerkalo/internal/placeholder"
	"github.com/valpere/dzerkalo/internal/translator"
	"github.com/valpere/dzerkalo/internal/validator"
)

var (
	ErrTimedOut        = errors.New("polish request timed out")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrEmptyText       = errors.New("text is empty")
)

// AllProviders selects every configured provider.
const AllProviders = "all"

// Arbitrator judges one candidate against the original and, optionally,
// summarises several candidates side by side.
type Arbitrator interface {
	Arbitrate(ctx context.Context, original, candidate, hint string) arbiter.Verdict
	Compare(ctx context.Context, original string, candidates map[string]string) (string, error)
}

// Retriever supplies context passages for a text.
type Retriever interface {
	Retrieve(ctx context.Context, text string, k int) ([]string, error)
}

// GlossarySource supplies preferred term translations for a language pair.
type GlossarySource interface {
	GetGlossaryTerms(ctx context.Context, sourceLang, targetLang string) (map[string]string, error)
}

// History receives every completed polish.
type History interface {
	RecordPolish(ctx context.Context, res *PolishResult) error
}

type Config struct {
	SourceLang string        `mapstructure:"source_lang"`
	PivotLang  string        `mapstructure:"pivot_lang"`
	Deadline   time.Duration `mapstructure:"deadline"`
	// LegTimeout bounds a single provider call; zero means only Deadline applies.
	LegTimeout    time.Duration `mapstructure:"leg_timeout"`
	Workers       int           `mapstructure:"workers"`
	TopK          int           `mapstructure:"top_k"`
	ProtectMarkup bool          `mapstructure:"protect_markup"`
	ValidatePivot bool          `mapstructure:"validate_pivot"`
	Compare       bool          `mapstructure:"compare"`
}

func DefaultConfig() Config {
	return Config{
		SourceLang: "zh",
		PivotLang:  "en",
		Deadline:   120 * time.Second,
		Workers:    4,
		TopK:       3,
	}
}

type PolishRequest struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Context  string `json:"context,omitempty"`
}

type Orchestrator struct {
	services map[string]translator.TranslationService
	order    []string
	arb      Arbitrator
	config   Config

	retriever Retriever
	glossary  GlossarySource
	history   History
	detector  *detector.Detector
	validator *validator.Validator
	log       logrus.FieldLogger
	newID     func() string

	// sem bounds provider and judge calls across all concurrent requests.
	sem *semaphore.Weighted
}

type Option func(*Orchestrator)

func WithRetriever(r Retriever) Option {
	return func(o *Orchestrator) { o.retriever = r }
}

func WithGlossary(g GlossarySource) Option {
	return func(o *Orchestrator) { o.glossary = g }
}

func WithHistory(h History) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithDetector supplies the detector used for SourceLang "auto" and pivot
// validation. Without it New builds one when either feature is enabled.
func WithDetector(d *detector.Detector) Option {
	return func(o *Orchestrator) { o.detector = d }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

func New(services []translator.TranslationService, arb Arbitrator, config Config, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if config.SourceLang == "" {
		config.SourceLang = def.SourceLang
	}
	if config.PivotLang == "" {
		config.PivotLang = def.PivotLang
	}
	if config.Deadline <= 0 {
		config.Deadline = def.Deadline
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.TopK <= 0 {
		config.TopK = def.TopK
	}

	o := &Orchestrator{
		services: make(map[string]translator.TranslationService, len(services)),
		arb:      arb,
		config:   config,
		log:      logrus.StandardLogger(),
		newID:    uuid.NewString,
		sem:      semaphore.NewWeighted(int64(config.Workers)),
	}
	for _, svc := range services {
		if _, dup := o.services[svc.Name()]; dup {
			continue
		}
		o.services[svc.Name()] = svc
		o.order = append(o.order, svc.Name())
	}
	sort.Strings(o.order)

	for _, opt := range opts {
		opt(o)
	}

	if (config.SourceLang == "auto" || config.ValidatePivot) && o.detector == nil {
		o.detector = detector.New()
	}
	if config.ValidatePivot {
		o.validator = validator.New(o.detector)
	}
	return o
}

// Providers returns the configured provider ids in sorted order.
func (o *Orchestrator) Providers() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

func (o *Orchestrator) Config() Config {
	return o.config
}

func (o *Orchestrator) selectProviders(sel string) ([]string, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" || sel == AllProviders {
		if len(o.order) == 0 {
			return nil, fmt.Errorf("%w: no providers configured", ErrUnknownProvider)
		}
		return o.Providers(), nil
	}
	if _, ok := o.services[sel]; !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownProvider, sel, strings.Join(o.order, ", "))
	}
	return []string{sel}, nil
}

// Polish round-trips req.Text through the selected providers and judges each
// result. Provider failures are reported per provider and never abort the
// others. If the deadline expires first, Polish returns ErrTimedOut and no
// partial result.
func (o *Orchestrator) Polish(ctx context.Context, req PolishRequest) (*PolishResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	names, err := o.selectProviders(req.Provider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Deadline)
	defer cancel()

	res := &PolishResult{
		ID:        o.newID(),
		Original:  req.Text,
		Selection: req.Provider,
		Results:   make(map[string]RoundTripResult, len(names)),
		CreatedAt: time.Now(),
	}
	if res.Selection == "" {
		res.Selection = AllProviders
	}
	log := o.log.WithField("request_id", res.ID)

	sourceLang := o.config.SourceLang
	if sourceLang == "auto" {
		sourceLang = o.detector.Resolve(req.Text, DefaultConfig().SourceLang)
	}
	res.SourceLang = sourceLang
	res.PivotLang = o.config.PivotLang

	res.Context = o.resolveContext(ctx, req, sourceLang, log)

	text := req.Text
	var markup *placeholder.Markup
	if o.config.ProtectMarkup {
		text, markup = placeholder.Protect(text)
	}

	done := make(chan RoundTripResult, len(names))

	for _, name := range names {
		go func(svc translator.TranslationService) {
			done <- o.roundTrip(ctx, svc, text, markup, req.Text, sourceLang, res.Context, log)
		}(o.services[name])
	}

	for range names {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			log.WithField("deadline", o.config.Deadline).Warn("polish deadline exceeded")
			return nil, ErrTimedOut
		case rt := <-done:
			res.Results[rt.Provider] = rt
		}
	}

	if o.config.Compare && len(res.Successful()) >= 2 {
		if err := o.sem.Acquire(ctx, 1); err == nil {
			summary, err := o.arb.Compare(ctx, req.Text, res.Suggested())
			o.sem.Release(1)
			if err != nil {
				log.WithError(err).Warn("comparative analysis failed")
			} else {
				res.Summary = summary
			}
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ErrTimedOut
	}

	if o.history != nil {
		if err := o.history.RecordPolish(context.WithoutCancel(ctx), res); err != nil {
			log.WithError(err).Warn("failed to record polish history")
		}
	}

	log.WithFields(logrus.Fields{
		"providers": len(names),
		"succeeded": len(res.Successful()),
	}).Info("polish complete")

	return res, nil
}

// resolveContext prefers the caller's context, then retrieval, then nothing,
// and appends glossary terms for the language pair.
func (o *Orchestrator) resolveContext(ctx context.Context, req PolishRequest, sourceLang string, log logrus.FieldLogger) string {
	hint := strings.TrimSpace(req.Context)
	if hint == "" && o.retriever != nil {
		passages, err := o.retriever.Retrieve(ctx, req.Text, o.config.TopK)
		if err != nil {
			log.WithError(err).Warn("context retrieval failed, continuing without context")
		} else {
			hint = strings.Join(passages, "\n\n")
		}
	}

	if o.glossary != nil {
		terms, err := o.glossary.GetGlossaryTerms(ctx, sourceLang, o.config.PivotLang)
		if err != nil {
			log.WithError(err).Warn("glossary lookup failed")
		} else if len(terms) > 0 {
			hint = appendGlossary(hint, terms)
		}
	}
	return hint
}

func appendGlossary(hint string, terms map[string]string) string {
	keys := make([]string, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(hint)
	if hint != "" {
		sb.WriteString("\n\n")
	}
	sb.WriteString("术语表 / Glossary:\n")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("%s → %s\n", k, terms[k]))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (o *Orchestrator) roundTrip(ctx context.Context, svc translator.TranslationService,
	text string, markup *placeholder.Markup, original, sourceLang, hint string, log logrus.FieldLogger) (rt RoundTripResult) {

	name := svc.Name()
	rt.Provider = name
	start := time.Now()
	defer func() { rt.Latency = time.Since(start) }()
	log = log.WithField("provider", name)

	forward, err := o.leg(ctx, svc, translator.TranslateRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: o.config.PivotLang,
		Context:    hint,
	})
	if err != nil {
		rt.Err = translator.AsProviderError(name, err)
		log.WithField("leg", "forward").WithError(err).Warn("round trip failed")
		return rt
	}
	rt.Intermediate = forward.TranslatedText

	if o.validator != nil {
		if err := o.validator.Check(placeholder.Strip(rt.Intermediate), o.config.PivotLang); err != nil {
			rt.Err = &translator.ProviderError{
				Provider: name,
				Kind:     translator.KindUnparsable,
				Message:  "pivot text rejected: " + err.Error(),
				RawBody:  rt.Intermediate,
				Err:      err,
			}
			log.WithField("leg", "forward").WithError(err).Warn("round trip failed")
			return rt
		}
	}

	backward, err := o.leg(ctx, svc, translator.TranslateRequest{
		Text:       rt.Intermediate,
		SourceLang: o.config.PivotLang,
		TargetLang: sourceLang,
		Context:    hint,
	})
	if err != nil {
		rt.Err = translator.AsProviderError(name, err)
		log.WithField("leg", "backward").WithError(err).Warn("round trip failed")
		return rt
	}

	rt.Final = backward.TranslatedText
	if markup.Len() > 0 {
		if missing := markup.Missing(rt.Final); len(missing) > 0 {
			log.WithField("missing", missing).Debug("markers lost in round trip")
		}
		rt.Final = markup.Restore(rt.Final)
	}
	rt.Cached = forward.Cached && backward.Cached

	if err := o.sem.Acquire(ctx, 1); err != nil {
		rt.Err = &translator.ProviderError{Provider: name, Kind: translator.KindTimeout, Message: "arbitration cancelled", Err: err}
		return rt
	}
	v := o.arb.Arbitrate(ctx, original, rt.Final, hint)
	o.sem.Release(1)
	rt.Verdict = &v

	return rt
}

func (o *Orchestrator) leg(ctx context.Context, svc translator.TranslationService, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, &translator.ProviderError{Provider: svc.Name(), Kind: translator.KindTimeout, Message: "waiting for a worker", Err: err}
	}
	defer o.sem.Release(1)

	legCtx := ctx
	if o.config.LegTimeout > 0 {
		var cancel context.CancelFunc
		legCtx, cancel = context.WithTimeout(ctx, o.config.LegTimeout)
		defer cancel()
	}

	res, err := svc.Translate(legCtx, req)
	if err != nil {
		pe := translator.AsProviderError(svc.Name(), err)
		if errors.Is(legCtx.Err(), context.DeadlineExceeded) && pe.Kind != translator.KindTimeout {
			timeout := *pe
			timeout.Kind = translator.KindTimeout
			pe = &timeout
		}
		return nil, pe
	}
	if res == nil || strings.TrimSpace(res.TranslatedText) == "" {
		return nil, &translator.ProviderError{Provider: svc.Name(), Kind: translator.KindUnparsable, Message: "empty translation"}
	}
	return res, nil
}
