package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
)

// ErrDisabled is returned by Noop.
var ErrDisabled = errors.New("headless fetcher not configured")

// Noop implements crawler.Fetcher but always fails, for deployments without a
// browser.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Strategy reports the strategy this fetcher stands in for.
func (Noop) Strategy() crawler.Strategy {
	return crawler.StrategyDynamic
}

// Fetch returns ErrDisabled.
func (Noop) Fetch(_ context.Context, _ string) (string, error) {
	return "", ErrDisabled
}

// Disabled reports that no browser backs this fetcher.
func (Noop) Disabled() bool {
	return true
}
