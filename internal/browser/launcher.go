// File: internal/browser/launcher.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/auspex/internal/config"
)

const (
	playwrightInstallTimeout = 5 * time.Minute
	launchTimeoutMs          = 60_000
)

// defaultLaunchArgs keep headless Chromium stable in containers and damp
// the most common automation tells.
var defaultLaunchArgs = []string{
	"--disable-gpu",
	"--no-sandbox",
	"--disable-dev-shm-usage",
	"--disable-blink-features=AutomationControlled",
}

// Launcher owns the Playwright driver process and launches Chromium
// instances for the pool. Driver startup is deferred to the first launch.
type Launcher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	initOnce sync.Once
	initErr  error
	pw       *playwright.Playwright
}

// NewLauncher builds a launcher; no driver process is started yet.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger.Named("launcher")}
}

func (l *Launcher) initialize(ctx context.Context) error {
	l.initOnce.Do(func() {
		if err := l.ensureInstallation(ctx); err != nil {
			l.initErr = err
			return
		}
		pw, err := playwright.Run()
		if err != nil {
			l.initErr = fmt.Errorf("failed to start playwright driver: %w", err)
			return
		}
		l.pw = pw
	})
	return l.initErr
}

// ensureInstallation downloads the Chromium build on first use. The install
// call blocks, so it runs under its own timeout.
func (l *Launcher) ensureInstallation(ctx context.Context) error {
	installCtx, cancel := context.WithTimeout(ctx, playwrightInstallTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to install playwright browsers: %w", err)
		}
		return nil
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for playwright installation: %w", installCtx.Err())
	}
}

// Launch starts one Chromium instance. It satisfies LaunchFunc.
func (l *Launcher) Launch(ctx context.Context) (playwright.Browser, error) {
	if err := l.initialize(ctx); err != nil {
		return nil, err
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.cfg.Headless),
		Args:     append(append([]string{}, defaultLaunchArgs...), l.cfg.Args...),
		Timeout:  playwright.Float(launchTimeoutMs),
	}
	b, err := l.pw.Chromium.Launch(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser instance: %w", err)
	}
	l.logger.Debug("Launched browser", zap.String("version", b.Version()))
	return b, nil
}

// Stop shuts the driver down. Launched browsers must be closed first; the
// pool handles that.
func (l *Launcher) Stop() error {
	if l.pw == nil {
		return nil
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright driver: %w", err)
	}
	return nil
}
