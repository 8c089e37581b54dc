// File: internal/llm/vision.go
package llm

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// visionModelPrefixes is the closed set of models trusted to accept image
// parts. Matching is a case-insensitive prefix check.
var visionModelPrefixes = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-4.1",
	"gpt-4.1-mini",
	"gpt-4.1-nano",
	"meta-llama/llama-4-scout",
	"meta-llama/llama-4-maverick",
}

// warnedModels remembers which non-vision models have already produced a
// warning. Process-wide; duplicate warnings are harmless, so a plain
// sync.Map suffices.
var warnedModels sync.Map

// SupportsVision reports whether the model can accept screenshots.
func SupportsVision(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range visionModelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// WarnIfNoVision logs once per process per model when vision is requested
// on a model outside the whitelist.
func WarnIfNoVision(model string, logger *zap.Logger) {
	if SupportsVision(model) {
		return
	}
	if _, loaded := warnedModels.LoadOrStore(model, struct{}{}); loaded {
		return
	}
	if logger != nil {
		logger.Warn("Model does not support vision; screenshots will not be sent",
			zap.String("model", model))
	}
}
