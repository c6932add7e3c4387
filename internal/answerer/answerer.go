// Package answerer answers questions from the knowledge base: it retrieves
// the closest passages and asks a local model to answer from them.
package answerer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyKnowledgeBase = errors.New("knowledge base is empty, upload documents first")
	ErrEmptyQuestion      = errors.New("question is empty")
)

const DefaultTopK = 3

// Corpus is the part of the embedding index the answerer needs.
type Corpus interface {
	Len() int
	Retrieve(ctx context.Context, text string, k int) ([]string, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Contexts []string `json:"contexts"`
}

type Answerer struct {
	corpus Corpus
	gen    Generator
	topK   int
	log    logrus.FieldLogger
}

type Option func(*Answerer)

func WithTopK(k int) Option {
	return func(a *Answerer) {
		if k > 0 {
			a.topK = k
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Answerer) {
		if log != nil {
			a.log = log
		}
	}
}

func New(corpus Corpus, gen Generator, opts ...Option) *Answerer {
	a := &Answerer{corpus: corpus, gen: gen, topK: DefaultTopK, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask answers question from the top matching passages.
func (a *Answerer) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if a.corpus.Len() == 0 {
		return nil, ErrEmptyKnowledgeBase
	}

	contexts, err := a.corpus.Retrieve(ctx, question, a.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	reply, err := a.gen.Generate(ctx, buildPrompt(question, contexts))
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}

	a.log.WithField("contexts", len(contexts)).Debug("question answered")
	return &Answer{Question: question, Answer: reply, Contexts: contexts}, nil
}

func buildPrompt(question string, contexts []string) string {
	return fmt.Sprintf(`基于以下上下文回答问题：

上下文：
%s

问题：%s

要求：
1. 如果上下文相关，优先基于上下文回答
2. 保持专业性和准确性
3. 避免编造不知道的信息`, strings.Join(contexts, "\n\n"), question)
}
