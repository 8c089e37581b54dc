// File: internal/agent/result.go
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/auspex/internal/action"
	"github.com/xkilldash9x/auspex/internal/llm"
)

// Status is the terminal state of one run.
type Status string

const (
	StatusDone          Status = "done"
	StatusMaxIterations Status = "max_iterations"
	StatusError         Status = "error"
	StatusTimeout       Status = "timeout"
	StatusAborted       Status = "aborted"
)

// Tier names the execution path that produced the result.
type Tier string

const (
	TierHTTP       Tier = "http"
	TierPlaywright Tier = "playwright"
)

// maxReportDataLen bounds the Result/Data section of the report.
const maxReportDataLen = 10_000

// ActionRecord is one dispatched action. The list is append-only per run.
type ActionRecord struct {
	Action    *action.Action `json:"action"`
	Iteration int            `json:"iteration"`
	Timestamp time.Time      `json:"timestamp"`
}

// MemoryStats carries the run's memory accounting. Zero BrowserPeakRSSKB
// with BrowserUsed set means the sampler was unavailable.
type MemoryStats struct {
	HeapMB           float64 `json:"heap_mb"`
	BrowserUsed      bool    `json:"browser_used"`
	BrowserPeakRSSKB int64   `json:"browser_peak_rss_kb"`
	BrowserSampled   bool    `json:"browser_sampled"`
}

// Result is the immutable outcome of one run.
type Result struct {
	Status     Status         `json:"status"`
	Tier       Tier           `json:"tier"`
	Data       any            `json:"data"`
	Report     string         `json:"report"`
	DurationMs int64          `json:"duration_ms"`
	Actions    []ActionRecord `json:"actions"`
	Usage      llm.Usage      `json:"usage"`
	Memory     MemoryStats    `json:"memory"`
	Error      string         `json:"error,omitempty"`
}

// FormatReport renders the human-readable run summary.
func FormatReport(r *Result, url, prompt string) string {
	var b strings.Builder

	b.WriteString("=== Auspex Agent Report ===\n")
	fmt.Fprintf(&b, "URL:      %s\n", url)
	fmt.Fprintf(&b, "Prompt:   %s\n", prompt)
	fmt.Fprintf(&b, "Status:   %s\n", r.Status)
	fmt.Fprintf(&b, "Method:   %s\n", r.Tier)
	fmt.Fprintf(&b, "Duration: %s\n", (time.Duration(r.DurationMs) * time.Millisecond).String())

	if len(r.Actions) > 0 {
		b.WriteString("\nActions:\n")
		for _, rec := range r.Actions {
			fmt.Fprintf(&b, "  %2d. %s\n", rec.Iteration, action.Describe(rec.Action))
		}
	}

	b.WriteString("\nResult:\n")
	switch {
	case r.Error != "":
		fmt.Fprintf(&b, "  ERROR: %s\n", r.Error)
	case r.Data != nil:
		fmt.Fprintf(&b, "  %s\n", truncateData(fmt.Sprintf("%v", r.Data)))
	default:
		b.WriteString("  (no data)\n")
	}

	b.WriteString("\nResource Usage:\n")
	fmt.Fprintf(&b, "  LLM calls: %d (prompt %d + completion %d = %d tokens)\n",
		r.Usage.Calls, r.Usage.PromptTokens, r.Usage.CompletionTokens, r.Usage.TotalTokens)
	fmt.Fprintf(&b, "  Heap: %.1f MB\n", r.Memory.HeapMB)
	switch {
	case !r.Memory.BrowserUsed:
		b.WriteString("  Browser memory: not used\n")
	case !r.Memory.BrowserSampled:
		b.WriteString("  Browser memory: not available\n")
	default:
		fmt.Fprintf(&b, "  Browser peak RSS: %d kB\n", r.Memory.BrowserPeakRSSKB)
	}

	return b.String()
}

func truncateData(s string) string {
	if len(s) <= maxReportDataLen {
		return s
	}
	return s[:maxReportDataLen] + "… (truncated)"
}
