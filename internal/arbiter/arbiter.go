// Package arbiter asks a judge model whether a rewrite improves on the
// original text and reduces its free-form answer to a decision.
package arbiter

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/valpere/dzerkalo/internal/postprocess"
)

// Preference names the version the judge favoured.
type Preference string

const (
	PreferOriginal  Preference = "original"
	PreferRewritten Preference = "rewritten"
)

// Basis records how a verdict's preference was reached.
type Basis string

const (
	BasisScores  Basis = "scores"
	BasisPhrases Basis = "phrases"
	BasisDefault Basis = "default"
	BasisFailure Basis = "failure"
)

type Scores struct {
	Original  float64 `json:"original"`
	Rewritten float64 `json:"rewritten"`
}

type Verdict struct {
	Analysis  string     `json:"analysis"`
	Preferred Preference `json:"preferred"`
	Scores    *Scores    `json:"scores,omitempty"`
	Basis     Basis      `json:"basis"`
}

// Judge sends a prompt to a language model and returns its raw reply.
type Judge interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

type Arbiter struct {
	judge Judge
	log   logrus.FieldLogger
}

type Option func(*Arbiter)

func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Arbiter) {
		if log != nil {
			a.log = log
		}
	}
}

func New(judge Judge, opts ...Option) *Arbiter {
	a := &Arbiter{judge: judge, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Arbiter) JudgeName() string {
	return a.judge.Name()
}

// Arbitrate compares original and candidate. It never fails: when the judge
// cannot be reached or answers with nothing, the verdict keeps the original
// and its Analysis says why.
func (a *Arbiter) Arbitrate(ctx context.Context, original, candidate, hint string) Verdict {
	reply, err := a.judge.Generate(ctx, buildPrompt(original, candidate, hint))
	if err != nil {
		a.log.WithField("judge", a.judge.Name()).WithError(err).Warn("arbitration failed")
		return Verdict{
			Analysis:  fmt.Sprintf("分析过程出错：%v", err),
			Preferred: PreferOriginal,
			Basis:     BasisFailure,
		}
	}

	analysis := postprocess.Clean(reply)
	if analysis == "" {
		return Verdict{
			Analysis:  "分析失败：评审模型未返回内容",
			Preferred: PreferOriginal,
			Basis:     BasisFailure,
		}
	}

	return parseVerdict(analysis)
}

// Compare asks the judge for a comparative summary of several rewrites of
// the same original, keyed by provider.
func (a *Arbiter) Compare(ctx context.Context, original string, candidates map[string]string) (string, error) {
	if len(candidates) < 2 {
		return "", fmt.Errorf("comparison needs at least two candidates, got %d", len(candidates))
	}
	reply, err := a.judge.Generate(ctx, buildComparePrompt(original, candidates))
	if err != nil {
		return "", fmt.Errorf("comparison request failed: %w", err)
	}
	reply = strings.TrimSpace(postprocess.Clean(reply))
	if reply == "" {
		return "", fmt.Errorf("judge %s returned an empty comparison", a.judge.Name())
	}
	return reply, nil
}
