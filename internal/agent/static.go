// File: internal/agent/static.go
package agent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/auspex/internal/action"
	"github.com/xkilldash9x/auspex/internal/llm"
	"github.com/xkilldash9x/auspex/internal/snapshot"
)

// runStatic attempts the task in a single LLM call against a static
// snapshot. It returns (result, true) when the run resolved at the HTTP
// tier; (nil, false) means escalate to the browser. Usage accumulates in
// state either way, so the browser loop inherits the spent tokens.
func runStatic(ctx context.Context, decider Decider, p loopParams, html, baseURL string, state *runState, rlog *runLog, obs *Observer, logger *zap.Logger) (*Result, bool) {
	if ctx.Err() != nil {
		return finish(state, StatusAborted, TierHTTP, nil, "run aborted by caller"), true
	}

	snap, err := snapshot.FromHTML(html, baseURL)
	if err != nil {
		logger.Debug("Static snapshot failed, escalating to browser", zap.Error(err))
		return nil, false
	}
	obs.iteration(0, snap.URL)
	rlog.iteration(0, snap.URL, snap.Title, len(snap.Text), len(snap.Links), len(snap.Forms))

	decision, usage, err := decider.Decide(ctx, llm.DecideRequest{
		Task:       p.prompt,
		Snapshot:   snap.Format(),
		SchemaDesc: p.schemaDesc,
	})
	state.usage.Add(usage)
	if err != nil {
		logger.Debug("Static decision failed, escalating to browser", zap.Error(err))
		return nil, false
	}

	act, err := action.Parse(decision)
	if err != nil {
		logger.Debug("Static action invalid, escalating to browser", zap.Error(err))
		return nil, false
	}
	if act.Type != action.KindDone {
		logger.Debug("Static path needs interaction, escalating to browser",
			zap.String("action", string(act.Type)))
		return nil, false
	}

	if strings.HasPrefix(act.Result, "FAILED:") {
		recordStaticAction(state, rlog, obs, act)
		msg := strings.TrimSpace(strings.TrimPrefix(act.Result, "FAILED:"))
		if msg == "" {
			msg = "task reported as failed"
		}
		return finish(state, StatusError, TierHTTP, nil, msg), true
	}
	if p.schemaValidate != nil {
		if err := p.schemaValidate([]byte(act.Result)); err != nil {
			logger.Debug("Static result failed schema, escalating to browser", zap.Error(err))
			return nil, false
		}
	}

	recordStaticAction(state, rlog, obs, act)
	return finish(state, StatusDone, TierHTTP, act.Result, ""), true
}

func recordStaticAction(state *runState, rlog *runLog, obs *Observer, act *action.Action) {
	state.actions = append(state.actions, ActionRecord{Action: act, Iteration: 0, Timestamp: time.Now()})
	obs.actionEvent(0, act)
	rlog.action(0, action.Describe(act))
}
