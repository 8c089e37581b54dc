// File: internal/agent/runlog.go
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// runLog writes the optional per-run plain-text log. A nil runLog is a
// no-op, so call sites never branch.
type runLog struct {
	f      *os.File
	logger *zap.Logger
}

// openRunLog creates auspex-<iso>.txt directly in dir. Failures are logged
// and yield a nil runLog; a run never fails because its log could not open.
func openRunLog(dir string, start time.Time, logger *zap.Logger) *runLog {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("Failed to create run log directory", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	stamp := strings.ReplaceAll(start.UTC().Format("2006-01-02T15:04:05Z"), ":", "-")
	path := filepath.Join(dir, fmt.Sprintf("auspex-%s.txt", stamp))
	f, err := os.Create(path)
	if err != nil {
		logger.Warn("Failed to create run log file", zap.String("path", path), zap.Error(err))
		return nil
	}
	return &runLog{f: f, logger: logger}
}

func (l *runLog) printf(format string, args ...any) {
	if l == nil {
		return
	}
	if _, err := fmt.Fprintf(l.f, format+"\n", args...); err != nil {
		l.logger.Debug("Run log write failed", zap.Error(err))
	}
}

func (l *runLog) header(start time.Time, url, prompt string) {
	l.printf("=== Auspex Run — %s ===", start.UTC().Format(time.RFC3339))
	l.printf("URL: %s", url)
	l.printf("Prompt: %s", prompt)
}

func (l *runLog) tier(t Tier) {
	l.printf("[%s]", t)
}

func (l *runLog) iteration(i int, url, title string, textLen, links, forms int) {
	l.printf("[iter %d] %s", i, url)
	l.printf("  title: %s", title)
	l.printf("  text (%d chars) | %d links | %d forms", textLen, links, forms)
}

func (l *runLog) action(i int, desc string) {
	l.printf("  [action %d] %s", i, desc)
}

func (l *runLog) actionOutcome(i int, err error) {
	if err != nil {
		l.printf("  [action %d] -> ERROR: %s", i, err.Error())
		return
	}
	l.printf("  [action %d] -> OK", i)
}

func (l *runLog) finish(r *Result) {
	l.printf("Status: %s", r.Status)
	l.printf("Duration: %dms", r.DurationMs)
	l.printf("Tokens: %d (calls: %d)", r.Usage.TotalTokens, r.Usage.Calls)
	l.printf("Actions: %d", len(r.Actions))
	if r.Data != nil {
		l.printf("Data: %s", truncateData(fmt.Sprintf("%v", r.Data)))
	}
}

func (l *runLog) close() {
	if l == nil {
		return
	}
	if err := l.f.Close(); err != nil {
		l.logger.Debug("Run log close failed", zap.Error(err))
	}
}
