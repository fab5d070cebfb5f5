// Package pipeline runs one website ingestion from seed URL to a chat-ready
// document: profile, choose a strategy, crawl, persist, index.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/clock/system"
	"github.com/JakeFAU/site-ingestor/internal/crawler"
	"github.com/JakeFAU/site-ingestor/internal/metrics"
	"github.com/JakeFAU/site-ingestor/internal/telemetry"
)

var errNoPages = errors.New("crawl collected no pages")

// Profiler fingerprints the technologies of a site.
type Profiler interface {
	Report(ctx context.Context, url string) *crawler.TechReport
}

// Crawler assembles document content from a seed with one fetcher.
type Crawler interface {
	Run(ctx context.Context, seed string, fetcher crawler.Fetcher) (crawler.DocumentContent, error)
}

// Indexer makes a retrieval index available for a document.
type Indexer interface {
	Ensure(ctx context.Context, docID string) bool
}

// Job identifies one ingestion run.
type Job struct {
	SeedURL   string `json:"seed_url"`
	DocID     string `json:"doc_id"`
	SessionID string `json:"session_id"`
}

// Result summarizes a finished run.
type Result struct {
	Status       crawler.SessionStatus
	Strategy     crawler.Strategy
	Technologies []string
	Pages        int
	ArtifactURI  string
	Err          error
}

// Deps are the collaborators of an Orchestrator. Dynamic, Sink and
// Publisher are optional.
type Deps struct {
	Store     crawler.Store
	Profiler  Profiler
	Crawler   Crawler
	Static    crawler.Fetcher
	Dynamic   crawler.Fetcher
	Sink      crawler.ArtifactSink
	Indexer   Indexer
	Publisher crawler.Publisher
	Clock     crawler.Clock
}

// Config controls artifact and event naming.
type Config struct {
	ArtifactPrefix string
	Topic          string
}

// Orchestrator sequences a single ingestion run and contains its failures.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New validates deps and builds an Orchestrator.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("store is required")
	case deps.Profiler == nil:
		return nil, errors.New("profiler is required")
	case deps.Crawler == nil:
		return nil, errors.New("crawler is required")
	case deps.Static == nil:
		return nil, errors.New("static fetcher is required")
	case deps.Indexer == nil:
		return nil, errors.New("indexer is required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger.Named("pipeline")}, nil
}

// Run executes job. Every failure, including a panic, ends the run with the
// session marked failed; the session status is written once, at the end.
func (o *Orchestrator) Run(ctx context.Context, job Job) (res Result) {
	log := o.logger.With(
		zap.String("doc_id", job.DocID),
		zap.String("session_id", job.SessionID),
		zap.String("url", job.SeedURL),
	)
	ctx, span := telemetry.StartSpan(ctx, "pipeline.run",
		attribute.String("doc_id", job.DocID),
		attribute.String("session_id", job.SessionID),
	)
	sessionCreated := false
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			res.Err = fmt.Errorf("pipeline panic: %v", r)
		}
		res.Status = crawler.SessionStatusReady
		if res.Err != nil {
			res.Status = crawler.SessionStatusFailed
		}
		o.finish(ctx, job, &res, sessionCreated, log)
		span.SetAttributes(
			attribute.String("status", string(res.Status)),
			attribute.String("strategy", string(res.Strategy)),
			attribute.Int("pages", res.Pages),
		)
		telemetry.EndSpan(span, res.Err)
	}()

	res.Err = o.run(ctx, job, &res, &sessionCreated, log)
	return res
}

func (o *Orchestrator) run(ctx context.Context, job Job, res *Result, sessionCreated *bool, log *zap.Logger) error {
	start := o.deps.Clock.Now()

	placeholder := crawler.Document{
		DocID:      job.DocID,
		WebsiteURL: job.SeedURL,
		Content:    crawler.DocumentContent{Technologies: []string{}, Pages: []crawler.Page{}},
	}
	if err := o.deps.Store.UpsertDocument(ctx, placeholder); err != nil {
		return fmt.Errorf("create placeholder document: %w", err)
	}
	if err := o.deps.Store.CreateSession(ctx, crawler.Session{
		ID:           job.SessionID,
		DocID:        job.DocID,
		CreatedAt:    start,
		Conversation: []string{},
		Status:       crawler.SessionStatusProcessing,
	}); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	*sessionCreated = true

	report := o.deps.Profiler.Report(ctx, job.SeedURL)
	if report != nil {
		res.Technologies = report.Technologies
	}
	res.Strategy = crawler.ChooseStrategyFromReport(report)
	fetcher := o.fetcherFor(res, log)
	metrics.ObserveStrategy(string(res.Strategy))
	log.Info("strategy selected",
		zap.String("strategy", string(res.Strategy)),
		zap.Strings("technologies", res.Technologies),
	)

	content, err := o.deps.Crawler.Run(ctx, job.SeedURL, fetcher)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	res.Pages = len(content.Pages)
	if content.Empty() {
		return errNoPages
	}
	content.Timestamp = o.deps.Clock.Now()
	content.Technologies = append([]string{}, res.Technologies...)

	doc := crawler.Document{DocID: job.DocID, WebsiteURL: content.WebsiteURL, Content: content}
	if o.deps.Sink != nil {
		uri, err := o.writeArtifact(ctx, doc)
		if err != nil {
			return err
		}
		res.ArtifactURI = uri
	}
	if err := o.deps.Store.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("store document: %w", err)
	}

	if !o.deps.Indexer.Ensure(ctx, job.DocID) {
		return fmt.Errorf("build index for %s", job.DocID)
	}
	log.Info("document ready",
		zap.Int("pages", res.Pages),
		zap.Duration("elapsed", o.deps.Clock.Now().Sub(start)),
	)
	return nil
}

// fetcherFor returns the fetcher for the chosen strategy, falling back to
// static when no dynamic fetcher is wired.
func (o *Orchestrator) fetcherFor(res *Result, log *zap.Logger) crawler.Fetcher {
	if res.Strategy != crawler.StrategyDynamic {
		return o.deps.Static
	}
	if o.deps.Dynamic == nil || isDisabled(o.deps.Dynamic) {
		log.Warn("dynamic fetcher unavailable, using static")
		res.Strategy = crawler.StrategyStatic
		return o.deps.Static
	}
	return o.deps.Dynamic
}

func isDisabled(f crawler.Fetcher) bool {
	d, ok := f.(interface{ Disabled() bool })
	return ok && d.Disabled()
}

func (o *Orchestrator) writeArtifact(ctx context.Context, doc crawler.Document) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	uri, err := o.deps.Sink.PutObject(ctx, o.cfg.ArtifactPrefix+doc.DocID+".json", "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("write document artifact: %w", err)
	}
	return uri, nil
}

// finish records the terminal status. Status and events are written even
// if ctx was canceled mid-run.
func (o *Orchestrator) finish(ctx context.Context, job Job, res *Result, sessionCreated bool, log *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	metrics.ObservePipelineRun(string(res.Status))

	if res.Err != nil {
		log.Error("pipeline failed", zap.Int("pages", res.Pages), zap.Error(res.Err))
	}
	if !sessionCreated {
		return
	}
	if err := o.deps.Store.SetSessionStatus(ctx, job.SessionID, res.Status); err != nil {
		log.Error("set session status failed", zap.String("status", string(res.Status)), zap.Error(err))
		return
	}
	if o.deps.Publisher == nil {
		return
	}
	event := crawler.SessionEvent{
		SessionID: job.SessionID,
		DocID:     job.DocID,
		Status:    res.Status,
		Pages:     res.Pages,
		Strategy:  res.Strategy,
		At:        o.deps.Clock.Now(),
	}
	if _, err := o.deps.Publisher.Publish(ctx, o.cfg.Topic, event); err != nil {
		log.Warn("publish session event failed", zap.Error(err))
	}
}
