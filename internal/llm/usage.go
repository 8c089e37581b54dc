// File: internal/llm/usage.go

// Package llm is the chat-completions client and prompt builder for the
// decision loop. One POST per decision, bounded retries on transient
// failures, JSON-mode responses when no image is attached.
package llm

// Usage accumulates token spend across a run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	Calls            int `json:"calls"`
}

// Add folds one call's usage into the accumulator.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.Calls += other.Calls
}
