// Package crawl walks a same-origin site breadth first and returns the text of every page it reached.
package crawl

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/metrics"
)

const maxBodyBytes = 10 << 20

// Page is a successfully fetched response body.
type Page struct {
	URL  *url.URL // final location after redirects
	Body []byte
}

// FetcherConfig holds the retry and client settings of a Fetcher.
type FetcherConfig struct {
	Attempts  int
	Delay     time.Duration
	Timeout   time.Duration
	UserAgent string
}

// Fetcher downloads pages with a fixed attempt budget and a constant delay
// between attempts.
type Fetcher struct {
	client    *http.Client
	attempts  int
	delay     time.Duration
	userAgent string
	logger    *zap.Logger
}

// NewFetcher creates a Fetcher. Zero values fall back to the ingestion defaults;
// a zero Delay is kept and retries immediately.
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	def := domain.DefaultIngestConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.FetchRetries
	}
	if cfg.Delay < 0 {
		cfg.Delay = def.FetchRetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.FetchTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		attempts:  cfg.Attempts,
		delay:     cfg.Delay,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Fetch returns the body of location. Intermediate failures are logged and
// retried; once the budget is spent the last failure is returned as a
// *domain.FetchError. Client errors other than 429 are not retried.
func (f *Fetcher) Fetch(ctx context.Context, location string) (*Page, error) {
	var page *Page
	attempt := 0

	op := func() error {
		attempt++
		p, err := f.get(ctx, location)
		if err != nil {
			return err
		}
		page = p
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.delay), uint64(f.attempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		metrics.FetchRetriesTotal.Inc()
		f.logger.Warn("Fetch failed, retrying",
			zap.String("location", location),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, &domain.FetchError{Location: location, Attempts: attempt, Err: err}
	}
	return page, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

func (f *Fetcher) get(ctx context.Context, location string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		serr := &statusError{code: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(serr)
		}
		return nil, serr
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !isTextual(ct) {
		return nil, backoff.Permanent(fmt.Errorf("unsupported content type %q", ct))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Page{URL: resp.Request.URL, Body: body}, nil
}

func isTextual(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "text/") || mt == "application/xhtml+xml"
}
