package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"trackforge/internal/config"
	"trackforge/internal/export"
	"trackforge/internal/metrics"
	"trackforge/internal/pipeline"
	"trackforge/internal/publisher"
	"trackforge/internal/source"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	routes, err := config.LoadRoutes(cfg.RoutesFile)
	if err != nil {
		log.Fatalf("routes error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.Tuning.ConnectTolerance, cfg.Workers)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Optional fetch stage: download raw blobs before any geometry work
	if cfg.FetchBaseURL != "" {
		client := source.NewClient(cfg.FetchBaseURL, cfg.FetchToken, cfg.FetchDelay, cfg.FetchRetries)
		ids := make([]string, 0, len(routes))
		for _, r := range routes {
			ids = append(ids, r.ID)
		}
		log.Printf("fetching %d route geometries from %s", len(ids), cfg.FetchBaseURL)
		if err := client.FetchAll(ctx, ids, cfg.SourceDir); err != nil {
			log.Fatalf("fetch error: %v", err)
		}
	}

	// Source: Postgres cache when a DSN is configured, plain files otherwise
	var src source.Source
	if cfg.DatabaseURL != "" {
		pg, err := source.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer pg.Close()
		if err := pg.Ping(ctx); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		src = pg
	} else {
		src = source.NewFileSource(cfg.SourceDir)
	}

	// Optional NATS publisher for rebuilt-track events
	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
	}

	exp := export.New(cfg.OutDir)
	p := pipeline.New(src, routes, cfg, exp, pub, mcol)
	log.Printf("run %s: rebuilding %d route-directions with %d workers", p.RunID(), len(routes), cfg.Workers)

	started := time.Now()
	summary, err := p.Run(ctx)
	if err != nil {
		log.Fatalf("pipeline error: %v", err)
	}
	log.Printf("run %s: built %d tracks, %d failed, in %s", summary.RunID, summary.Built, summary.Failed, time.Since(started).Round(time.Millisecond))
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
