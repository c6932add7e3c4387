package orchestrator

import (
	"errors"
	"sort"
	"time"

	"github.com/valpere/dzerkalo/internal"
	"github.com/valpere/dzerkalo/internal/arbiter"
	"github.com/valpere/dzerkalo/internal/translator"
)

// RoundTripResult is one provider's pass through the pipeline. Exactly one
// of Err and Verdict is set.
type RoundTripResult struct {
	Provider     string
	Intermediate string
	Final        string
	Verdict      *arbiter.Verdict
	Err          *translator.ProviderError
	Cached       bool
	Latency      time.Duration
}

type PolishResult struct {
	ID         string
	Original   string
	Selection  string
	SourceLang string
	PivotLang  string
	Context    string
	Results    map[string]RoundTripResult
	// Summary is the judge's side-by-side comparison, when requested and
	// at least two providers succeeded.
	Summary   string
	CreatedAt time.Time
}

// Successful returns the ids of providers that completed the round trip,
// in sorted order.
func (p *PolishResult) Successful() []string {
	var out []string
	for name, r := range p.Results {
		if r.Err == nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Suggested maps each successful provider to its round-tripped text,
// whichever side the judge preferred. The preference is reported apart.
func (p *PolishResult) Suggested() map[string]string {
	out := make(map[string]string)
	for name, r := range p.Results {
		if r.Err == nil {
			out[name] = r.Final
		}
	}
	return out
}

// Response is the wire shape of a completed polish.
type Response struct {
	ID        string                        `json:"id"`
	Original  string                        `json:"original"`
	Suggested map[string]string             `json:"suggested"`
	Analysis  map[string]string             `json:"analysis"`
	Preferred map[string]arbiter.Preference `json:"preferred"`
	Scores    map[string]*arbiter.Scores    `json:"scores,omitempty"`
	Errors    map[string]string             `json:"errors,omitempty"`
	Summary   string                        `json:"summary,omitempty"`
}

func (p *PolishResult) Response() Response {
	resp := Response{
		ID:        p.ID,
		Original:  p.Original,
		Suggested: p.Suggested(),
		Analysis:  make(map[string]string),
		Preferred: make(map[string]arbiter.Preference),
		Summary:   p.Summary,
	}
	for name, r := range p.Results {
		if r.Err != nil {
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[name] = r.Err.Error()
			continue
		}
		resp.Analysis[name] = r.Verdict.Analysis
		resp.Preferred[name] = r.Verdict.Preferred
		if r.Verdict.Scores != nil {
			if resp.Scores == nil {
				resp.Scores = make(map[string]*arbiter.Scores)
			}
			resp.Scores[name] = r.Verdict.Scores
		}
	}
	return resp
}

type ErrorBody struct {
	Error string `json:"error"`
}

// ErrorResponse renders a request-level failure. Timeouts get a fixed,
// user-facing message.
func ErrorResponse(err error) ErrorBody {
	if errors.Is(err, ErrTimedOut) {
		return ErrorBody{Error: "request timed out, please try again later"}
	}
	return ErrorBody{Error: err.Error()}
}

// Record converts the result to the storage model.
func (p *PolishResult) Record() internal.PolishRecord {
	rec := internal.PolishRecord{
		ID:                p.ID,
		OriginalText:      p.Original,
		ProviderSelection: p.Selection,
		ContextHint:       p.Context,
		Summary:           p.Summary,
		Timestamp:         p.CreatedAt,
	}

	names := make([]string, 0, len(p.Results))
	for name := range p.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r := p.Results[name]
		out := internal.ProviderOutcome{
			Provider:         name,
			IntermediateText: r.Intermediate,
			FinalText:        r.Final,
			Latency:          r.Latency,
		}
		if r.Err != nil {
			out.Error = r.Err.Error()
			out.ErrorKind = r.Err.Kind.String()
		}
		if r.Verdict != nil {
			out.Preferred = string(r.Verdict.Preferred)
			out.Analysis = r.Verdict.Analysis
			if r.Verdict.Scores != nil {
				o, w := r.Verdict.Scores.Original, r.Verdict.Scores.Rewritten
				out.OriginalScore = &o
				out.RewrittenScore = &w
			}
		}
		rec.Outcomes = append(rec.Outcomes, out)
	}
	return rec
}
