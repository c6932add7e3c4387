package answerer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/valpere/dzerkalo/internal/embedding"
	"github.com/valpere/dzerkalo/internal/index"
)

type recordingGenerator struct {
	prompt string
	reply  string
	err    error
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}

func newCorpus(t *testing.T, texts ...string) *index.Index {
	t.Helper()
	log, _ := test.NewNullLogger()
	ix := index.New(embedding.NewHashEmbedder(128), index.WithLogger(log))
	var recs []index.Record
	for _, text := range texts {
		recs = append(recs, index.Record{Text: text, Source: "doc.txt"})
	}
	if len(recs) > 0 {
		if err := ix.Append(context.Background(), recs); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return ix
}

func TestAsk_UsesRetrievedContext(t *testing.T) {
	gen := &recordingGenerator{reply: "机器学习是人工智能的一个分支。"}
	a := New(newCorpus(t, "机器学习是人工智能的分支", "天气预报说明天下雨"), gen, WithTopK(1))

	ans, err := a.Ask(context.Background(), "什么是机器学习？")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Answer != gen.reply {
		t.Errorf("unexpected answer %q", ans.Answer)
	}
	if len(ans.Contexts) != 1 || ans.Contexts[0] != "机器学习是人工智能的分支" {
		t.Errorf("unexpected contexts %v", ans.Contexts)
	}
	if !strings.Contains(gen.prompt, "机器学习是人工智能的分支") || !strings.Contains(gen.prompt, "问题：什么是机器学习？") {
		t.Errorf("prompt missing context or question:\n%s", gen.prompt)
	}
}

func TestAsk_EmptyKnowledgeBase(t *testing.T) {
	gen := &recordingGenerator{reply: "x"}
	_, err := New(newCorpus(t), gen).Ask(context.Background(), "问题")
	if !errors.Is(err, ErrEmptyKnowledgeBase) {
		t.Errorf("expected ErrEmptyKnowledgeBase, got %v", err)
	}
	if gen.prompt != "" {
		t.Error("generator should not be called on an empty corpus")
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	_, err := New(newCorpus(t, "文本"), &recordingGenerator{}).Ask(context.Background(), "  ")
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestAsk_GeneratorFailure(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := New(newCorpus(t, "文本"), &recordingGenerator{err: boom}).Ask(context.Background(), "问题")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped generator error, got %v", err)
	}
}

func TestOllamaGenerator_New(t *testing.T) {
	g := NewOllamaGenerator("", "", 0)
	if g.model != DefaultOllamaModel {
		t.Errorf("expected default model, got %q", g.model)
	}
	if g.baseURL != "http://localhost:11434" {
		t.Errorf("unexpected base URL %q", g.baseURL)
	}
	if g.client == nil {
		t.Error("expected non-nil HTTP client")
	}
}

func TestOllamaGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Model != "llama3:8b" {
			t.Errorf("expected model 'llama3:8b', got %q", req.Model)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		if req.Options["temperature"] != 0.3 {
			t.Errorf("expected temperature 0.3, got %v", req.Options["temperature"])
		}
		json.NewEncoder(w).Encode(ollamaResponse{Response: "  答案  "})
	}))
	defer server.Close()

	got, err := NewOllamaGenerator("llama3:8b", server.URL+"/", time.Second).Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "答案" {
		t.Errorf("expected trimmed answer, got %q", got)
	}
}

func TestOllamaGenerator_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	g := NewOllamaGenerator("missing", server.URL, time.Second)
	if _, err := g.Generate(context.Background(), "prompt"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestOllamaGenerator_EmptyAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{})
	}))
	defer server.Close()

	if _, err := NewOllamaGenerator("m", server.URL, time.Second).Generate(context.Background(), "p"); err == nil {
		t.Error("expected error for empty answer")
	}
}

func TestGeneratorInterface(t *testing.T) {
	var _ Generator = (*OllamaGenerator)(nil)
}
