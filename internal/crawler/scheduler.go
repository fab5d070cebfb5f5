package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/metrics"
)

// Extractor turns fetched markup into clean text plus same-host links.
type Extractor interface {
	Extract(markup, pageURL, host string) (text string, links []string, err error)
}

// SchedulerConfig bounds a crawl run. Zero means unbounded. A nil Pacer
// fetches without delay.
type SchedulerConfig struct {
	MaxPages    int
	MaxFrontier int
	Pacer       Pacer
}

// Scheduler drives a breadth-first, same-host crawl from a seed URL.
type Scheduler struct {
	extractor Extractor
	cfg       SchedulerConfig
	logger    *zap.Logger
}

// NewScheduler wires a Scheduler.
func NewScheduler(extractor Extractor, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		extractor: extractor,
		cfg:       cfg,
		logger:    logger.Named("scheduler"),
	}
}

// frontier is the pending queue and visited set of a single run.
type frontier struct {
	host    string
	queue   []string
	queued  map[string]struct{}
	visited map[string]struct{}
	limit   int
}

func newFrontier(host string, limit int) *frontier {
	return &frontier{
		host:    host,
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
		limit:   limit,
	}
}

// push enqueues a normalized same-host URL that has not been seen yet.
func (f *frontier) push(raw string) bool {
	key, err := NormalizeURL(raw)
	if err != nil {
		return false
	}
	u, err := url.Parse(key)
	if err != nil || HostKey(u) != f.host {
		return false
	}
	if _, ok := f.visited[key]; ok {
		return false
	}
	if _, ok := f.queued[key]; ok {
		return false
	}
	if f.limit > 0 && len(f.queue) >= f.limit {
		return false
	}
	f.queue = append(f.queue, key)
	f.queued[key] = struct{}{}
	return true
}

// pop returns the next unvisited URL and marks it visited.
func (f *frontier) pop() (string, bool) {
	for len(f.queue) > 0 {
		next := f.queue[0]
		f.queue = f.queue[1:]
		delete(f.queued, next)
		if _, ok := f.visited[next]; ok {
			continue
		}
		f.visited[next] = struct{}{}
		return next, true
	}
	return "", false
}

// Run crawls the seed's host with fetcher and returns the assembled pages.
// Pages that fail to fetch or have no text are skipped. Errors are only
// returned for an invalid seed or a canceled context.
func (s *Scheduler) Run(ctx context.Context, seed string, fetcher Fetcher) (DocumentContent, error) {
	seedURL, host, err := ParseSeed(seed)
	if err != nil {
		return DocumentContent{}, err
	}
	content := DocumentContent{
		WebsiteURL: SiteRoot(seedURL),
		Pages:      []Page{},
	}
	label := string(strategyOf(fetcher))

	f := newFrontier(host, s.cfg.MaxFrontier)
	f.push(seedURL.String())

	for {
		if err := ctx.Err(); err != nil {
			return content, fmt.Errorf("crawl %s: %w", host, err)
		}
		if s.cfg.MaxPages > 0 && len(content.Pages) >= s.cfg.MaxPages {
			s.logger.Info("page limit reached", zap.String("host", host), zap.Int("max_pages", s.cfg.MaxPages))
			break
		}
		current, ok := f.pop()
		if !ok {
			break
		}

		if s.cfg.Pacer != nil {
			if err := s.cfg.Pacer.Wait(ctx, current); err != nil {
				return content, fmt.Errorf("crawl %s: %w", host, err)
			}
		}
		start := time.Now()
		markup, err := fetcher.Fetch(ctx, current)
		if err != nil || markup == "" {
			s.logger.Warn("fetch skipped", zap.String("url", current), zap.Error(err))
			metrics.ObservePage(label, metrics.OutcomeFetchFailed, time.Since(start))
			continue
		}

		text, links, err := s.extractor.Extract(markup, current, host)
		if err != nil {
			s.logger.Warn("extract failed", zap.String("url", current), zap.Error(err))
			metrics.ObservePage(label, metrics.OutcomeExtractFailed, time.Since(start))
			continue
		}
		if text != "" {
			content.Pages = append(content.Pages, Page{
				Title:   TitleFromURL(current),
				URL:     current,
				Content: text,
			})
			metrics.ObservePage(label, metrics.OutcomeStored, time.Since(start))
		} else {
			metrics.ObservePage(label, metrics.OutcomeEmpty, time.Since(start))
		}

		added := 0
		for _, link := range links {
			if f.push(link) {
				added++
			}
		}
		s.logger.Debug("page crawled",
			zap.String("url", current),
			zap.Int("text_len", len(text)),
			zap.Int("links", len(links)),
			zap.Int("enqueued", added),
			zap.Int("pending", len(f.queue)),
		)
	}

	s.logger.Info("crawl finished",
		zap.String("host", host),
		zap.Int("pages", len(content.Pages)),
		zap.Int("visited", len(f.visited)),
	)
	return content, nil
}

// strategyOf reports the strategy a fetcher implements, when it says.
func strategyOf(fetcher Fetcher) Strategy {
	if s, ok := fetcher.(interface{ Strategy() Strategy }); ok {
		return s.Strategy()
	}
	return StrategyStatic
}
