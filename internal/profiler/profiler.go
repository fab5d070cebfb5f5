// Package profiler fingerprints the technologies behind a website.
package profiler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
	"github.com/JakeFAU/site-ingestor/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Detector is one independent fingerprinting source.
type Detector interface {
	Name() string
	Detect(ctx context.Context, url string) ([]string, error)
}

// Prober issues a single request and returns the raw response.
type Prober interface {
	Probe(ctx context.Context, url string) (crawler.FetchResponse, error)
}

// Profiler merges the output of several detectors.
type Profiler struct {
	detectors []Detector
	timeout   time.Duration
	logger    *zap.Logger
}

// New builds a Profiler. A zero timeout uses the default of 15s per detector.
func New(detectors []Detector, timeout time.Duration, logger *zap.Logger) *Profiler {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profiler{
		detectors: detectors,
		timeout:   timeout,
		logger:    logger.Named("profiler"),
	}
}

// Analyze runs every detector concurrently and returns the sorted, lowercased
// union of their results. A failing detector contributes nothing.
func (p *Profiler) Analyze(ctx context.Context, url string) []string {
	var (
		mu  sync.Mutex
		set = make(map[string]struct{})
	)

	// Detector errors are swallowed, so the group never cancels its siblings.
	var g errgroup.Group
	for _, d := range p.detectors {
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			techs, err := p.detect(dctx, d, url)
			if err != nil {
				p.logger.Warn("detector failed",
					zap.String("detector", d.Name()),
					zap.String("url", url),
					zap.Error(err),
				)
				metrics.ObserveDetectorFailure(d.Name())
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, t := range techs {
				if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
					set[t] = struct{}{}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	p.logger.Info("technologies detected", zap.String("url", url), zap.Strings("technologies", out))
	return out
}

func (p *Profiler) detect(ctx context.Context, d Detector, url string) (techs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return d.Detect(ctx, url)
}

// Report wraps Analyze in a tech report.
func (p *Profiler) Report(ctx context.Context, url string) *crawler.TechReport {
	return &crawler.TechReport{Technologies: p.Analyze(ctx, url)}
}

// Default returns a profiler with the header and markup detectors over prober.
func Default(prober Prober, timeout time.Duration, logger *zap.Logger) *Profiler {
	return New([]Detector{NewHeaderDetector(prober), NewMarkupDetector(prober)}, timeout, logger)
}
