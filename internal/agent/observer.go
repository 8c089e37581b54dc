// File: internal/agent/observer.go
package agent

import "github.com/xkilldash9x/auspex/internal/action"

// Observer receives run events in the order the loop produces them. All
// callbacks are optional and invoked on the loop's goroutine.
type Observer struct {
	OnTier      func(tier Tier)
	OnIteration func(iteration int, url string)
	OnAction    func(iteration int, a *action.Action)
	OnDone      func(r *Result)
	OnError     func(err error)
}

func (o *Observer) tier(t Tier) {
	if o != nil && o.OnTier != nil {
		o.OnTier(t)
	}
}

func (o *Observer) iteration(i int, url string) {
	if o != nil && o.OnIteration != nil {
		o.OnIteration(i, url)
	}
}

func (o *Observer) actionEvent(i int, a *action.Action) {
	if o != nil && o.OnAction != nil {
		o.OnAction(i, a)
	}
}

func (o *Observer) done(r *Result) {
	if o != nil && o.OnDone != nil {
		o.OnDone(r)
	}
}

func (o *Observer) failure(err error) {
	if o != nil && o.OnError != nil {
		o.OnError(err)
	}
}
