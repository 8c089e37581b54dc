// File: internal/browser/executor.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/auspex/internal/action"
	"github.com/xkilldash9x/auspex/internal/urlguard"
)

const (
	clickTimeoutMs   = 10_000
	elementTimeoutMs = 5_000
	gotoTimeoutMs    = 30_000
)

// URLValidator re-checks navigation targets. *urlguard.Validator satisfies
// it; tests inject fakes.
type URLValidator interface {
	Validate(ctx context.Context, raw string, opts urlguard.Options) (string, error)
}

// Executor translates validated actions into page operations.
type Executor struct {
	page      playwright.Page
	guard     URLValidator
	guardOpts urlguard.Options
	logger    *zap.Logger
}

// NewExecutor binds an executor to one page. guard re-validates goto targets
// with the run's allow and block lists.
func NewExecutor(page playwright.Page, guard URLValidator, guardOpts urlguard.Options, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{page: page, guard: guard, guardOpts: guardOpts, logger: logger.Named("executor")}
}

// Execute dispatches one action. done is a no-op here; the loop owns
// termination.
func (e *Executor) Execute(ctx context.Context, a *action.Action) error {
	switch a.Type {
	case action.KindClick:
		return e.click(a.Selector)
	case action.KindType:
		return e.fill(a.Selector, a.Text)
	case action.KindSelect:
		return e.selectOption(a.Selector, a.Value)
	case action.KindPressKey:
		return e.pressKey(a.Key)
	case action.KindHover:
		return e.hover(a.Selector)
	case action.KindGoto:
		return e.goTo(ctx, a.URL)
	case action.KindWait:
		return e.wait(ctx, a.Ms)
	case action.KindScroll:
		return e.scroll(a.Direction, a.Amount)
	case action.KindDone:
		return nil
	default:
		return fmt.Errorf("unsupported action type %q", a.Type)
	}
}

func (e *Executor) locator(selector string) (playwright.Locator, bool) {
	role, ok := action.ParseRoleSelector(selector)
	if !ok {
		return nil, false
	}
	opts := playwright.PageGetByRoleOptions{}
	if role.Name != "" {
		opts.Name = role.Name
	}
	return e.page.GetByRole(playwright.AriaRole(strings.ToLower(role.Role)), opts).First(), true
}

func (e *Executor) click(selector string) error {
	var err error
	if loc, ok := e.locator(selector); ok {
		err = loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(clickTimeoutMs)})
	} else {
		err = e.page.Click(selector, playwright.PageClickOptions{Timeout: playwright.Float(clickTimeoutMs)})
	}
	if err != nil {
		return fmt.Errorf("click failed on %q: %w", selector, err)
	}
	e.waitForLoadQuietly()
	return nil
}

func (e *Executor) fill(selector, text string) error {
	var err error
	if loc, ok := e.locator(selector); ok {
		err = loc.Fill(text, playwright.LocatorFillOptions{Timeout: playwright.Float(elementTimeoutMs)})
	} else {
		err = e.page.Fill(selector, text, playwright.PageFillOptions{Timeout: playwright.Float(elementTimeoutMs)})
	}
	if err != nil {
		return fmt.Errorf("type failed on %q: %w", selector, err)
	}
	return nil
}

func (e *Executor) selectOption(selector, value string) error {
	values := playwright.SelectOptionValues{Values: &[]string{value}}
	var err error
	if loc, ok := e.locator(selector); ok {
		_, err = loc.SelectOption(values, playwright.LocatorSelectOptionOptions{Timeout: playwright.Float(elementTimeoutMs)})
	} else {
		_, err = e.page.SelectOption(selector, values, playwright.PageSelectOptionOptions{Timeout: playwright.Float(elementTimeoutMs)})
	}
	if err != nil {
		return fmt.Errorf("select failed on %q: %w", selector, err)
	}
	return nil
}

func (e *Executor) pressKey(key string) error {
	if err := e.page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("pressKey failed for %q: %w", key, err)
	}
	if keyTriggersNavigation(key) {
		e.waitForLoadQuietly()
	}
	return nil
}

func (e *Executor) hover(selector string) error {
	var err error
	if loc, ok := e.locator(selector); ok {
		err = loc.Hover(playwright.LocatorHoverOptions{Timeout: playwright.Float(elementTimeoutMs)})
	} else {
		err = e.page.Hover(selector, playwright.PageHoverOptions{Timeout: playwright.Float(elementTimeoutMs)})
	}
	if err != nil {
		return fmt.Errorf("hover failed on %q: %w", selector, err)
	}
	return nil
}

func (e *Executor) goTo(ctx context.Context, rawURL string) error {
	validated, err := e.guard.Validate(ctx, rawURL, e.guardOpts)
	if err != nil {
		return fmt.Errorf("goto blocked: %w", err)
	}
	_, err = e.page.Goto(validated, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(gotoTimeoutMs),
	})
	if err != nil {
		return fmt.Errorf("goto failed for %q: %w", validated, err)
	}
	return nil
}

func (e *Executor) wait(ctx context.Context, ms int) error {
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) scroll(direction string, amount int) error {
	if _, err := e.page.Evaluate(scrollExpression(direction, amount)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// waitForLoadQuietly absorbs navigation settling after clicks and Enter
// presses; a timeout here is not an action failure.
func (e *Executor) waitForLoadQuietly() {
	err := e.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(domContentLoadedTimeoutMs),
	})
	if err != nil {
		e.logger.Debug("Post-action load wait did not settle", zap.Error(err))
	}
}

func keyTriggersNavigation(key string) bool {
	return strings.EqualFold(key, "enter")
}

func scrollExpression(direction string, amount int) string {
	if amount <= 0 {
		amount = action.DefaultScroll
	}
	if direction == "up" {
		amount = -amount
	}
	return fmt.Sprintf("window.scrollBy(0, %d)", amount)
}
