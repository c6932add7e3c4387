package internal

import "time"

// PolishRecord is the flattened form of a completed polish request, as kept
// in the history tables.
type PolishRecord struct {
	ID                string            `json:"id"`
	OriginalText      string            `json:"original_text"`
	ProviderSelection string            `json:"provider_selection"`
	ContextHint       string            `json:"context_hint"`
	Outcomes          []ProviderOutcome `json:"outcomes"`
	Summary           string            `json:"summary,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
}

// ProviderOutcome is one provider's round trip inside a PolishRecord.
type ProviderOutcome struct {
	Provider         string        `json:"provider"`
	IntermediateText string        `json:"intermediate_text"`
	FinalText        string        `json:"final_text"`
	Preferred        string        `json:"preferred"`
	OriginalScore    *float64      `json:"original_score,omitempty"`
	RewrittenScore   *float64      `json:"rewritten_score,omitempty"`
	Analysis         string        `json:"analysis"`
	Error            string        `json:"error,omitempty"`
	ErrorKind        string        `json:"error_kind,omitempty"`
	Latency          time.Duration `json:"latency"`
}
