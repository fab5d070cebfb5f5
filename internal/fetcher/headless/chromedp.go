// Package headless contains the dynamic fetch strategy that renders pages in
// a headless browser.
package headless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
)

const defaultNavTimeout = 45 * time.Second

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// SettleDelay is slept after navigation; zero skips the wait.
	SettleDelay       time.Duration
	ExecPath          string
}

// Fetcher renders pages in a fresh browser process per call.
type Fetcher struct {
	cfg     Config
	limiter chan struct{}
	opts    []chromedp.ExecAllocatorOption
	logger  *zap.Logger
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, errors.New("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	if cfg.SettleDelay < 0 {
		return nil, errors.New("settle delay must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	return &Fetcher{
		cfg:     cfg,
		limiter: limiter,
		opts:    opts,
		logger:  logger.Named("headless"),
	}, nil
}

// Strategy reports the strategy this fetcher implements.
func (f *Fetcher) Strategy() crawler.Strategy {
	return crawler.StrategyDynamic
}

// WithBrowser starts an isolated browser, runs fn against a tab in it and
// shuts the browser down before returning, whatever fn does.
func (f *Fetcher) WithBrowser(ctx context.Context, fn func(tab context.Context) error) error {
	if err := f.acquire(ctx); err != nil {
		return err
	}
	defer f.release()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.opts...)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	timeoutCtx, cancel := context.WithTimeout(tabCtx, f.budget())
	defer cancel()

	return fn(timeoutCtx)
}

// Fetch navigates to url, waits the settle delay and returns the rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var html string
	start := time.Now()
	err := f.WithBrowser(ctx, func(tab context.Context) error {
		actions := []chromedp.Action{
			f.networkSetupAction(),
			chromedp.Navigate(url),
		}
		if d := f.settleDelay(); d > 0 {
			actions = append(actions, chromedp.Sleep(d))
		}
		actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
		if err := chromedp.Run(tab, actions...); err != nil {
			return fmt.Errorf("chromedp run: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	f.logger.Debug("page rendered",
		zap.String("url", url),
		zap.Int("bytes", len(html)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return html, nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return ctx.Err()
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return defaultNavTimeout
}

func (f *Fetcher) settleDelay() time.Duration {
	return max(f.cfg.SettleDelay, 0)
}

// budget bounds one browser session: navigation plus the settle wait.
func (f *Fetcher) budget() time.Duration {
	return f.navTimeout() + f.settleDelay()
}
