package crawl

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/extract"
	"github.com/kailas-cloud/knowchain/internal/metrics"
)

// fetcher is the consumer interface for page downloads (ISP).
type fetcher interface {
	Fetch(ctx context.Context, location string) (*Page, error)
}

// Config bounds a crawl run.
type Config struct {
	Concurrency      int
	MaxPages         int // 0 = unbounded
	DeniedExtensions []string
}

// Crawler runs breadth-first crawls. Each run gets its own Frontier.
type Crawler struct {
	fetcher fetcher
	cfg     Config
	logger  *zap.Logger
}

// New creates a Crawler.
func New(f fetcher, cfg Config, logger *zap.Logger) *Crawler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Crawler{fetcher: f, cfg: cfg, logger: logger}
}

type fetchResult struct {
	page *Page
	err  error
}

// Crawl visits seed and every same-origin page reachable from it, level by
// level. Pages of one level are fetched concurrently; their links are
// expanded in page order once the whole level is in. A page that cannot be
// fetched is logged and skipped. If no page yields text the seed's failure is
// returned.
func (c *Crawler) Crawl(ctx context.Context, seed string) ([]domain.Document, error) {
	seedURL, err := url.Parse(seed)
	if err != nil || (seedURL.Scheme != "http" && seedURL.Scheme != "https") || seedURL.Host == "" {
		return nil, fmt.Errorf("seed %q: %w", seed, domain.ErrInvalidInput)
	}
	seed, _ = Normalize(seedURL, "")
	origin := Origin(seedURL)

	pool, err := ants.NewPool(c.cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("create fetch pool: %w", err)
	}
	defer pool.Release()

	frontier := NewFrontier(c.cfg.DeniedExtensions, c.cfg.MaxPages)
	frontier.ShouldVisit(seed)

	var (
		docs    []domain.Document
		seedErr error
		level   = []string{seed}
	)

	for depth := 0; len(level) > 0; depth++ {
		results := c.fetchLevel(ctx, pool, level)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []string
		for i, loc := range level {
			res := results[i]
			if res.err != nil {
				metrics.CrawlPagesTotal.WithLabelValues("error").Inc()
				c.logger.Warn("Skipping page", zap.String("location", loc), zap.Error(res.err))
				if loc == seed {
					seedErr = res.err
				}
				continue
			}
			metrics.CrawlPagesTotal.WithLabelValues("ok").Inc()

			doc, err := extract.HTML(res.page.Body, res.page.URL)
			if err != nil {
				c.logger.Info("No text on page", zap.String("location", loc), zap.Error(err))
			} else {
				doc.Source = loc
				docs = append(docs, doc)
			}

			for _, link := range frontier.Expand(res.page.Body, res.page.URL, origin) {
				if frontier.ShouldVisit(link) {
					next = append(next, link)
				}
			}
		}

		c.logger.Debug("Crawl level done",
			zap.Int("depth", depth),
			zap.Int("pages", len(level)),
			zap.Int("discovered", len(next)),
		)
		level = next
	}

	if len(docs) == 0 {
		if seedErr != nil {
			return nil, seedErr
		}
		return nil, &domain.ExtractionError{Source: seed, Err: domain.ErrEmptyDocument}
	}

	c.logger.Info("Crawl finished",
		zap.String("seed", seed),
		zap.Int("visited", len(frontier.Visited())),
		zap.Int("documents", len(docs)),
	)
	return docs, nil
}

// fetchLevel downloads every location through the pool and returns the
// results in the order of level.
func (c *Crawler) fetchLevel(ctx context.Context, pool *ants.Pool, level []string) []fetchResult {
	results := make([]fetchResult, len(level))
	var wg sync.WaitGroup

	for i, loc := range level {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			page, err := c.fetcher.Fetch(ctx, loc)
			results[i] = fetchResult{page: page, err: err}
		})
		if err != nil {
			wg.Done()
			results[i] = fetchResult{err: fmt.Errorf("submit fetch: %w", err)}
		}
	}

	wg.Wait()
	return results
}
