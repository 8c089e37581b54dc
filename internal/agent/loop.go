// File: internal/agent/loop.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/auspex/internal/action"
	"github.com/xkilldash9x/auspex/internal/llm"
	"github.com/xkilldash9x/auspex/internal/snapshot"
)

const (
	// loopWindowSize is the sliding window of recent action keys consulted
	// for stuck detection.
	loopWindowSize = 9
	// maxKeyOccurrences triggers the stuck branch on the third occurrence
	// of a key within the window.
	maxKeyOccurrences = 3
	// visionFailureThreshold activates vision after this many consecutive
	// failures.
	visionFailureThreshold = 3
	// historyHead + historyTail select which history lines reach the model
	// once history outgrows their sum.
	historyHead = 1
	historyTail = 7
)

var blockedURLMarkers = []string{"/sorry/", "/captcha", "/challenge", "/recaptcha", "/blocked"}

var blockedTextMarkers = []string{
	"unusual traffic",
	"not a robot",
	"captcha",
	"blocked your ip",
	"access denied",
	"rate limit",
}

// Decider is the slice of the LLM client the loop needs.
type Decider interface {
	Decide(ctx context.Context, req llm.DecideRequest) (json.RawMessage, llm.Usage, error)
	Model() string
}

// ActionExecutor runs one validated action against the page.
type ActionExecutor interface {
	Execute(ctx context.Context, a *action.Action) error
}

// Page is the live page surface the loop drives: snapshotting plus
// screenshots for vision escalation.
type Page interface {
	snapshot.LivePage
	Screenshot(quality int) ([]byte, error)
}

type loopDeps struct {
	page    Page
	exec    ActionExecutor
	decider Decider
	sampler MemorySampler
	log     *runLog
	obs     *Observer
	logger  *zap.Logger
}

type loopParams struct {
	prompt               string
	schemaDesc           string
	schemaValidate       func([]byte) error
	maxIterations        int
	timeout              time.Duration
	actionDelay          time.Duration
	maxTotalTokens       int
	visionAvailable      bool
	screenshotQuality    int
	blockedTextThreshold int
}

type runState struct {
	start   time.Time
	usage   llm.Usage
	history []string
	actions []ActionRecord

	window              []string
	consecutiveFailures int
	visionActive        bool

	browserUsed bool
	peakRSSKB   int64
	sampled     bool
}

// runInteractive drives the perception-decision-action loop until a
// terminal condition. It always returns a Result; loop-internal errors
// become history entries, not Go errors.
func runInteractive(ctx context.Context, deps loopDeps, p loopParams, state *runState) *Result {
	state.browserUsed = true

	for i := 0; i < p.maxIterations; i++ {
		if ctx.Err() != nil {
			return finish(state, StatusAborted, TierPlaywright, nil, "run aborted by caller")
		}

		state.sampleMemory(deps.sampler)

		if time.Since(state.start) > p.timeout {
			return finish(state, StatusTimeout, TierPlaywright, nil,
				fmt.Sprintf("deadline of %s exceeded", p.timeout))
		}
		if p.maxTotalTokens > 0 && state.usage.TotalTokens >= p.maxTotalTokens {
			return finish(state, StatusError, TierPlaywright, nil,
				fmt.Sprintf("Token budget exceeded: %d >= %d", state.usage.TotalTokens, p.maxTotalTokens))
		}

		snap := snapshot.FromPage(deps.page, true, deps.logger)
		deps.obs.iteration(i, snap.URL)
		deps.log.iteration(i, snap.URL, snap.Title, len(snap.Text), len(snap.Links), len(snap.Forms))

		if reason, blocked := blockedPage(snap, p.blockedTextThreshold); blocked {
			return finish(state, StatusError, TierPlaywright, nil, "Blocked by target site: "+reason)
		}

		var screenshot []byte
		if state.visionActive {
			if shot, err := deps.page.Screenshot(p.screenshotQuality); err == nil {
				screenshot = shot
			} else {
				deps.logger.Debug("Screenshot capture failed", zap.Error(err))
			}
		}

		decision, usage, err := deps.decider.Decide(ctx, llm.DecideRequest{
			Task:       p.prompt,
			Snapshot:   snap.Format(),
			History:    windowedHistory(state.history),
			SchemaDesc: p.schemaDesc,
			Screenshot: screenshot,
			Vision:     state.visionActive,
		})
		state.usage.Add(usage)
		if err != nil {
			if errors.Is(err, llm.ErrTruncated) {
				return finish(state, StatusError, TierPlaywright, nil, err.Error())
			}
			return finish(state, StatusError, TierPlaywright, nil, "LLM decision failed: "+err.Error())
		}

		act, err := action.Parse(decision)
		if err != nil {
			state.consecutiveFailures++
			state.history = append(state.history, fmt.Sprintf(
				"[%d] INVALID ACTION: %s. Use shorter, simpler CSS selectors that appear in the snapshot.", i, err.Error()))
			state.maybeActivateVision(p, i, deps.logger)
			continue
		}

		key := action.Key(act)
		if occurrences(state.window, key)+1 >= maxKeyOccurrences {
			state.consecutiveFailures++
			state.history = append(state.history, fmt.Sprintf(
				"[%d] STUCK: action repeated %d times. Take a completely different approach.", i, maxKeyOccurrences))
			state.window = state.window[:0]
			state.maybeActivateVision(p, i, deps.logger)
			continue
		}
		state.window = append(state.window, key)
		if len(state.window) > loopWindowSize {
			state.window = state.window[1:]
		}

		state.actions = append(state.actions, ActionRecord{Action: act, Iteration: i, Timestamp: time.Now()})
		deps.obs.actionEvent(i, act)
		deps.log.action(i, action.Describe(act))

		if act.Type == action.KindDone {
			if strings.HasPrefix(act.Result, "FAILED:") {
				msg := strings.TrimSpace(strings.TrimPrefix(act.Result, "FAILED:"))
				if msg == "" {
					msg = "task reported as failed"
				}
				return finish(state, StatusError, TierPlaywright, nil, msg)
			}
			if p.schemaValidate != nil {
				if err := p.schemaValidate([]byte(act.Result)); err != nil {
					state.consecutiveFailures++
					state.history = append(state.history, fmt.Sprintf(
						"[%d] INVALID RESULT: %s. Return done again with data matching the required schema.", i, err.Error()))
					state.maybeActivateVision(p, i, deps.logger)
					continue
				}
			}
			return finish(state, StatusDone, TierPlaywright, act.Result, "")
		}

		if err := deps.exec.Execute(ctx, act); err != nil {
			state.consecutiveFailures++
			state.history = append(state.history, fmt.Sprintf(
				"[%d] ERROR executing %s: %s. Try a different approach.", i, act.Type, err.Error()))
			deps.log.actionOutcome(i, err)
			state.maybeActivateVision(p, i, deps.logger)
			continue
		}
		state.history = append(state.history, fmt.Sprintf("[%d] %s -> OK", i, action.Format(act)))
		deps.log.actionOutcome(i, nil)
		state.consecutiveFailures = 0

		// wait and goto pace themselves.
		if act.Type != action.KindWait && act.Type != action.KindGoto {
			if err := sleepCtx(ctx, p.actionDelay); err != nil {
				return finish(state, StatusAborted, TierPlaywright, nil, "run aborted by caller")
			}
		}
	}

	return finish(state, StatusMaxIterations, TierPlaywright, nil,
		fmt.Sprintf("no terminal action after %d iterations", p.maxIterations))
}

func (s *runState) sampleMemory(sampler MemorySampler) {
	if sampler == nil {
		return
	}
	if rss, ok := sampler(); ok {
		s.sampled = true
		if rss > s.peakRSSKB {
			s.peakRSSKB = rss
		}
	}
}

// maybeActivateVision turns vision on once the failure streak crosses the
// threshold; it stays on for the rest of the run.
func (s *runState) maybeActivateVision(p loopParams, iteration int, logger *zap.Logger) {
	if !p.visionAvailable || s.visionActive || s.consecutiveFailures < visionFailureThreshold {
		return
	}
	s.visionActive = true
	s.history = append(s.history, fmt.Sprintf("[%d] Vision mode activated after repeated failures.", iteration))
	logger.Info("Vision escalation activated", zap.Int("iteration", iteration))
}

// windowedHistory keeps the first line plus the most recent historyTail
// lines once history outgrows the combined window.
func windowedHistory(history []string) []string {
	if len(history) <= historyHead+historyTail {
		return history
	}
	out := make([]string, 0, historyHead+historyTail)
	out = append(out, history[:historyHead]...)
	out = append(out, history[len(history)-historyTail:]...)
	return out
}

func occurrences(window []string, key string) int {
	n := 0
	for _, k := range window {
		if k == key {
			n++
		}
	}
	return n
}

// blockedPage applies the challenge heuristic to a snapshot.
func blockedPage(snap *snapshot.Snapshot, textThreshold int) (string, bool) {
	lowerURL := strings.ToLower(snap.URL)
	for _, marker := range blockedURLMarkers {
		if strings.Contains(lowerURL, marker) {
			return "url contains " + marker, true
		}
	}
	if len(snap.Text) < textThreshold {
		lowerText := strings.ToLower(snap.Text)
		for _, marker := range blockedTextMarkers {
			if strings.Contains(lowerText, marker) {
				return fmt.Sprintf("page text contains %q", marker), true
			}
		}
	}
	return "", false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish assembles the terminal Result shared by every exit branch.
func finish(state *runState, status Status, tier Tier, data any, errMsg string) *Result {
	r := &Result{
		Status:     status,
		Tier:       tier,
		Data:       data,
		DurationMs: time.Since(state.start).Milliseconds(),
		Actions:    state.actions,
		Usage:      state.usage,
		Error:      errMsg,
		Memory: MemoryStats{
			HeapMB:           heapMB(),
			BrowserUsed:      state.browserUsed,
			BrowserPeakRSSKB: state.peakRSSKB,
			BrowserSampled:   state.sampled,
		},
	}
	return r
}
