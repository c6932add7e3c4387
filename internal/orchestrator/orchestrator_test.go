package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/valpere/dzerkalo/internal/arbiter"
	"github.com/valpere/dzerkalo/internal/cache"
	"github.com/valpere/dzerkalo/internal/embedding"
	"github.com/valpere/dzerkalo/internal/index"
	"github.com/valpere/dzerkalo/internal/translator"
)

type mockService struct {
	nameVal       string
	translateFunc func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error)
	callCount     atomic.Int32

	mu       sync.Mutex
	requests []translator.TranslateRequest
}

func (m *mockService) Name() string { return m.nameVal }

func (m *mockService) Translate(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.translateFunc != nil {
		return m.translateFunc(ctx, req)
	}
	return &translator.ServiceResult{ServiceName: m.nameVal, TranslatedText: reverse(req.Text)}, nil
}

func (m *mockService) IsAvailable(ctx context.Context) error { return nil }

func (m *mockService) lastRequest() translator.TranslateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func failing(kind translator.ErrorKind) func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	return func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
		return nil, &translator.ProviderError{Provider: "broken", Kind: kind, Message: "always fails"}
	}
}

type stubJudge struct {
	reply string
	calls atomic.Int32
}

func (s *stubJudge) Name() string { return "stub" }

func (s *stubJudge) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	return s.reply, nil
}

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func newTestOrchestrator(services []translator.TranslationService, cfg Config, opts ...Option) (*Orchestrator, *stubJudge) {
	judge := &stubJudge{reply: "润色后的文本与原文一致。\n原文得分：7\n润色后得分：7"}
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(services, arbiter.New(judge, arbiter.WithLogger(quietLogger())), cfg, opts...), judge
}

func TestPolish_EndToEndIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()

	ix := index.New(embedding.NewHashEmbedder(256), index.WithLogger(quietLogger()))
	if err := ix.Append(ctx, []index.Record{{Text: "机器学习是人工智能的分支", Source: "a.txt"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	hits, err := ix.Query(ctx, "什么是机器学习", 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 || hits[0].Record.Source != "a.txt" {
		t.Fatalf("expected the single record, got %+v", hits)
	}

	svc := &mockService{nameVal: "providerA"}
	o, _ := newTestOrchestrator([]translator.TranslationService{svc}, Config{}, WithRetriever(ix))

	original := "深度学习需要大量数据"
	res, err := o.Polish(ctx, PolishRequest{Text: original, Provider: "providerA"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp := res.Response()
	if resp.Suggested["providerA"] != original {
		t.Errorf("expected identity round trip, got %q", resp.Suggested["providerA"])
	}
	if resp.Analysis["providerA"] == "" {
		t.Error("expected non-empty analysis")
	}
	if resp.Original != original {
		t.Errorf("expected original echoed back, got %q", resp.Original)
	}
	if res.Context != "机器学习是人工智能的分支" {
		t.Errorf("expected retrieved context, got %q", res.Context)
	}

	rt := res.Results["providerA"]
	if rt.Intermediate != reverse(original) {
		t.Errorf("unexpected intermediate %q", rt.Intermediate)
	}
	if svc.callCount.Load() != 2 {
		t.Errorf("expected forward and backward calls, got %d", svc.callCount.Load())
	}
}

func TestPolish_PartialFailure(t *testing.T) {
	good := &mockService{nameVal: "good"}
	bad := &mockService{nameVal: "bad", translateFunc: failing(translator.KindAuthFailure)}
	o, judge := newTestOrchestrator([]translator.TranslationService{good, bad}, Config{})

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文", Provider: AllProviders})
	if err != nil {
		t.Fatalf("partial failure must not fail the request: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("expected two results, got %d", len(res.Results))
	}
	if res.Results["good"].Err != nil || res.Results["good"].Verdict == nil {
		t.Errorf("expected good provider to succeed, got %+v", res.Results["good"])
	}
	badRes := res.Results["bad"]
	if badRes.Err == nil || badRes.Err.Kind != translator.KindAuthFailure {
		t.Errorf("expected auth failure for bad provider, got %+v", badRes.Err)
	}
	if badRes.Verdict != nil {
		t.Error("failed provider should not be arbitrated")
	}
	if bad.callCount.Load() != 1 {
		t.Errorf("backward leg must not run after a failed forward leg, got %d calls", bad.callCount.Load())
	}
	if judge.calls.Load() != 1 {
		t.Errorf("expected one arbitration, got %d", judge.calls.Load())
	}

	resp := res.Response()
	if _, ok := resp.Errors["bad"]; !ok {
		t.Error("expected an error entry for the bad provider")
	}
	if _, ok := resp.Suggested["bad"]; ok {
		t.Error("failed provider should not have a suggestion")
	}
}

func TestPolish_RecordsLatency(t *testing.T) {
	slow := &mockService{nameVal: "slow", translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
		time.Sleep(50 * time.Millisecond)
		return &translator.ServiceResult{ServiceName: "slow", TranslatedText: reverse(req.Text)}, nil
	}}
	o, _ := newTestOrchestrator([]translator.TranslationService{slow}, Config{})

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Results["slow"].Latency; got < 100*time.Millisecond {
		t.Errorf("expected latency to cover both legs, got %v", got)
	}
}

func TestPolish_SuggestionKeptWhenJudgePrefersOriginal(t *testing.T) {
	svc := &mockService{nameVal: "a", translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
		if req.TargetLang == "en" {
			return &translator.ServiceResult{ServiceName: "a", TranslatedText: "Original!!"}, nil
		}
		return &translator.ServiceResult{ServiceName: "a", TranslatedText: "原文!!"}, nil
	}}
	o, judge := newTestOrchestrator([]translator.TranslationService{svc}, Config{})
	judge.reply = "原文更好。原文得分：8 润色后得分：6"

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp := res.Response()
	if resp.Preferred["a"] != arbiter.PreferOriginal {
		t.Errorf("expected the judge to keep the original, got %s", resp.Preferred["a"])
	}
	if resp.Suggested["a"] != "原文!!" {
		t.Errorf("expected the rewrite to be reported, got %q", resp.Suggested["a"])
	}
	if s := resp.Scores["a"]; s == nil || s.Original != 8 || s.Rewritten != 6 {
		t.Errorf("unexpected scores %+v", s)
	}
}

func TestPolish_DeadlineExceeded(t *testing.T) {
	slow := &mockService{nameVal: "slow", translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	o, _ := newTestOrchestrator([]translator.TranslationService{slow}, Config{Deadline: 50 * time.Millisecond})

	start := time.Now()
	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文"})
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if res != nil {
		t.Error("expected no partial result on timeout")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("deadline was not enforced")
	}
	if ErrorResponse(err).Error == "" {
		t.Error("expected a user-facing timeout message")
	}
}

func TestPolish_LegTimeoutIsPerProvider(t *testing.T) {
	slow := &mockService{nameVal: "slow", translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	fast := &mockService{nameVal: "fast"}
	o, _ := newTestOrchestrator([]translator.TranslationService{slow, fast}, Config{
		Deadline:   5 * time.Second,
		LegTimeout: 30 * time.Millisecond,
	})

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := res.Results["slow"].Err; e == nil || e.Kind != translator.KindTimeout {
		t.Errorf("expected timeout for slow provider, got %+v", e)
	}
	if res.Results["fast"].Err != nil {
		t.Errorf("fast provider should succeed, got %v", res.Results["fast"].Err)
	}
}

func TestPolish_MalformedRequests(t *testing.T) {
	o, _ := newTestOrchestrator([]translator.TranslationService{&mockService{nameVal: "a"}}, Config{})

	if _, err := o.Polish(context.Background(), PolishRequest{Text: "  "}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	if _, err := o.Polish(context.Background(), PolishRequest{Text: "原文", Provider: "nope"}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}

	empty, _ := newTestOrchestrator(nil, Config{})
	if _, err := empty.Polish(context.Background(), PolishRequest{Text: "原文"}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider with no providers, got %v", err)
	}
}

func TestPolish_SingleProviderSelection(t *testing.T) {
	a := &mockService{nameVal: "a"}
	b := &mockService{nameVal: "b"}
	o, _ := newTestOrchestrator([]translator.TranslationService{a, b}, Config{})

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文", Provider: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 1 || a.callCount.Load() != 0 {
		t.Errorf("expected only provider b to run, got %v", res.Results)
	}
}

type countingRetriever struct {
	calls    atomic.Int32
	passages []string
	err      error
}

func (r *countingRetriever) Retrieve(ctx context.Context, text string, k int) ([]string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	if k < len(r.passages) {
		return r.passages[:k], nil
	}
	return r.passages, nil
}

func TestPolish_ExplicitContextOverridesRetrieval(t *testing.T) {
	svc := &mockService{nameVal: "a"}
	ret := &countingRetriever{passages: []string{"检索到的段落"}}
	o, _ := newTestOrchestrator([]translator.TranslationService{svc}, Config{}, WithRetriever(ret))

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文", Context: "调用方提供的背景"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.calls.Load() != 0 {
		t.Error("retriever should not be consulted when context is supplied")
	}
	if res.Context != "调用方提供的背景" {
		t.Errorf("unexpected context %q", res.Context)
	}
	if svc.lastRequest().Context != "调用方提供的背景" {
		t.Errorf("provider did not receive the context hint")
	}
}

func TestPolish_RetrievalUsesTopK(t *testing.T) {
	ret := &countingRetriever{passages: []string{"一", "二", "三", "四"}}
	o, _ := newTestOrchestrator([]translator.TranslationService{&mockService{nameVal: "a"}}, Config{TopK: 2}, WithRetriever(ret))

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Context != "一\n\n二" {
		t.Errorf("expected two passages joined by blank lines, got %q", res.Context)
	}
}

func TestPolish_RetrievalFailureDegrades(t *testing.T) {
	ret := &countingRetriever{err: index.ErrStaleIndex}
	o, _ := newTestOrchestrator([]translator.TranslationService{&mockService{nameVal: "a"}}, Config{}, WithRetriever(ret))

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文"})
	if err != nil {
		t.Fatalf("retrieval failure must not fail the request: %v", err)
	}
	if res.Context != "" {
		t.Errorf("expected empty context, got %q", res.Context)
	}
}

func TestPolish_EmptyCorpusGivesEmptyContext(t *testing.T) {
	ix := index.New(embedding.NewHashEmbedder(32), index.WithLogger(quietLogger()))
	o, _ := newTestOrchestrator([]translator.TranslationService{&mockService{nameVal: "a"}}, Config{}, WithRetriever(ix))

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Context != "" {
		t.Errorf("expected empty context, got %q", res.Context)
	}
}

type mapGlossary map[string]string

func (g mapGlossary) GetGlossaryTerms(ctx context.Context, src, tgt string) (map[string]string, error) {
	return g, nil
}

func TestPolish_GlossaryAppendedToContext(t *testing.T) {
	svc := &mockService{nameVal: "a"}
	o, _ := newTestOrchestrator([]translator.TranslationService{svc}, Config{},
		WithGlossary(mapGlossary{"机器学习": "machine learning"}))

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文", Context: "背景"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(res.Context, "背景\n\n") || !strings.Contains(res.Context, "机器学习 → machine learning") {
		t.Errorf("unexpected context %q", res.Context)
	}
}

func TestPolish_IdempotentWithCache(t *testing.T) {
	svc := &mockService{nameVal: "a"}
	client := translator.NewClient(svc, cache.NewMemory(64, time.Minute), translator.WithLogger(quietLogger()))
	o, _ := newTestOrchestrator([]translator.TranslationService{client}, Config{})

	req := PolishRequest{Text: "同一段文本", Provider: "a"}
	first, err := o.Polish(context.Background(), req)
	if err != nil {
		t.Fatalf("first polish: %v", err)
	}
	second, err := o.Polish(context.Background(), req)
	if err != nil {
		t.Fatalf("second polish: %v", err)
	}

	if svc.callCount.Load() != 2 {
		t.Errorf("expected the second polish to be served from cache, got %d provider calls", svc.callCount.Load())
	}
	if !second.Results["a"].Cached {
		t.Error("expected second round trip to be marked cached")
	}
	if first.Response().Suggested["a"] != second.Response().Suggested["a"] {
		t.Error("expected identical suggestions")
	}
	if first.ID == second.ID {
		t.Error("each polish should get its own id")
	}
}

func TestPolish_WorkerBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	slowEcho := func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return &translator.ServiceResult{TranslatedText: reverse(req.Text)}, nil
	}

	var services []translator.TranslationService
	for _, name := range []string{"a", "b", "c", "d"} {
		services = append(services, &mockService{nameVal: name, translateFunc: slowEcho})
	}
	o, _ := newTestOrchestrator(services, Config{Workers: 2})

	if _, err := o.Polish(context.Background(), PolishRequest{Text: "原文"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent provider calls, saw %d", peak.Load())
	}
}

func TestPolish_CompareSummary(t *testing.T) {
	a := &mockService{nameVal: "a"}
	b := &mockService{nameVal: "b"}
	o, judge := newTestOrchestrator([]translator.TranslationService{a, b}, Config{Compare: true})

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary == "" {
		t.Error("expected a comparative summary")
	}
	if judge.calls.Load() != 3 {
		t.Errorf("expected two arbitrations and one comparison, got %d judge calls", judge.calls.Load())
	}
}

func TestPolish_ProtectMarkup(t *testing.T) {
	var seen string
	svc := &mockService{nameVal: "a", translateFunc: func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
		if seen == "" {
			seen = req.Text
		}
		return &translator.ServiceResult{TranslatedText: req.Text}, nil
	}}
	o, _ := newTestOrchestrator([]translator.TranslationService{svc}, Config{ProtectMarkup: true, Workers: 1})

	res, err := o.Polish(context.Background(), PolishRequest{Text: "运行 `go test` 即可"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(seen, "`go test`") {
		t.Errorf("inline code should be hidden from the provider, got %q", seen)
	}
	if res.Results["a"].Final != "运行 `go test` 即可" {
		t.Errorf("expected markup restored, got %q", res.Results["a"].Final)
	}
}

type recordingHistory struct {
	mu      sync.Mutex
	results []*PolishResult
}

func (h *recordingHistory) RecordPolish(ctx context.Context, res *PolishResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, res)
	return nil
}

func TestPolish_HistoryRecorded(t *testing.T) {
	h := &recordingHistory{}
	o, _ := newTestOrchestrator([]translator.TranslationService{&mockService{nameVal: "a"}}, Config{}, WithHistory(h))

	res, err := o.Polish(context.Background(), PolishRequest{Text: "原文"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.results) != 1 || h.results[0].ID != res.ID {
		t.Fatalf("expected the result to be recorded, got %v", h.results)
	}

	rec := res.Record()
	if rec.ProviderSelection != AllProviders {
		t.Errorf("expected selection %q, got %q", AllProviders, rec.ProviderSelection)
	}
	if len(rec.Outcomes) != 1 || rec.Outcomes[0].OriginalScore == nil {
		t.Errorf("expected scored outcome, got %+v", rec.Outcomes)
	}
}

func TestNew_Defaults(t *testing.T) {
	o, _ := newTestOrchestrator([]translator.TranslationService{
		&mockService{nameVal: "b"},
		&mockService{nameVal: "a"},
		&mockService{nameVal: "a"},
	}, Config{})

	cfg := o.Config()
	if cfg.SourceLang != "zh" || cfg.PivotLang != "en" || cfg.Deadline != 120*time.Second || cfg.Workers != 4 || cfg.TopK != 3 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if got := o.Providers(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected sorted, de-duplicated providers, got %v", got)
	}
}

func TestErrorResponse(t *testing.T) {
	if got := ErrorResponse(errors.New("boom")).Error; got != "boom" {
		t.Errorf("unexpected message %q", got)
	}
	if got := ErrorResponse(ErrTimedOut).Error; got == ErrTimedOut.Error() {
		t.Error("expected a user-facing timeout message")
	}
}
