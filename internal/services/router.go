package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/flacsync/internal/shared"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRateLimitWait  = 5 * time.Second
	defaultRetryWait      = 2 * time.Second
	maxResponseBytes      = 32 << 20
)

// RouterOpts configures a [Router]. Zero durations select the defaults (30s, 5s, 2s);
// negative durations disable the corresponding wait.
type RouterOpts struct {
	Servers        []string
	HTTPClient     *http.Client
	Headers        map[string]string
	RequestTimeout time.Duration
	RateLimitWait  time.Duration
	RetryWait      time.Duration
	Logger         *log.Logger
}

// Router executes GET requests against a [ServerPool], absorbing transient failures.
type Router struct {
	pool           *ServerPool
	client         *http.Client
	headers        map[string]string
	requestTimeout time.Duration
	rateLimitWait  time.Duration
	retryWait      time.Duration
	logger         *log.Logger

	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// Response is a successful (200) catalog reply.
type Response struct {
	Server     string
	StatusCode int
	Body       []byte
}

// RouterStats counts logical requests made through a router.
type RouterStats struct {
	Total       int64   `json:"total_requests"`
	Succeeded   int64   `json:"successful"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

func durationOr(d, fallback time.Duration) time.Duration {
	switch {
	case d == 0:
		return fallback
	case d < 0:
		return 0
	default:
		return d
	}
}

// NewRouter builds a router over opts.Servers. An empty pool is an error.
func NewRouter(opts RouterOpts) (*Router, error) {
	pool, err := NewServerPool(opts.Servers)
	if err != nil {
		return nil, err
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Router{
		pool:           pool,
		client:         opts.HTTPClient,
		headers:        opts.Headers,
		requestTimeout: durationOr(opts.RequestTimeout, defaultRequestTimeout),
		rateLimitWait:  durationOr(opts.RateLimitWait, defaultRateLimitWait),
		retryWait:      durationOr(opts.RetryWait, defaultRetryWait),
		logger:         shared.WithLogger(opts.Logger, "component", "router"),
	}, nil
}

// Stats returns a snapshot of the request counters.
func (r *Router) Stats() RouterStats {
	total := r.total.Load()
	succeeded := r.succeeded.Load()
	rate := float64(succeeded) / float64(max(total, 1)) * 100
	return RouterStats{
		Total:       total,
		Succeeded:   succeeded,
		Failed:      r.failed.Load(),
		SuccessRate: float64(int(rate*10+0.5)) / 10,
	}
}

// Execute performs GET path?params against up to maxAttemptsPerServer × poolSize servers.
//
// 200 returns the body. 404 returns [shared.ErrNotFound] at once. 429 waits the
// rate-limit backoff; 5xx, other statuses and transport errors wait the retry backoff.
// Exhausting the budget returns [shared.ErrRequestFailed] carrying the last failure.
// Cancelling ctx aborts between attempts and during waits; the request counts as failed.
func (r *Router) Execute(ctx context.Context, path string, params url.Values, maxAttemptsPerServer int) (*Response, error) {
	r.total.Add(1)
	maxAttemptsPerServer = max(maxAttemptsPerServer, 1)
	budget := maxAttemptsPerServer * r.pool.Size()
	tried := make(map[string]struct{}, r.pool.Size())
	lastErr := "no attempt made"

	r.logger.Debug("request", "path", path, "params", params.Encode())

	for attempt := 1; attempt <= budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, r.abort(err)
		}

		server := r.pool.next(tried)
		host := hostOf(server)
		start := time.Now()
		status, body, err := r.do(ctx, server+path, params)

		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, r.abort(ctx.Err())
			}
			lastErr = describeTransportError(err)
			r.logger.Warn("transport error", "server", host, "error", lastErr)
			wait = r.retryWait
		case status == http.StatusOK:
			r.succeeded.Add(1)
			r.logger.Debug("ok", "server", host, "elapsed", time.Since(start).Round(time.Millisecond))
			return &Response{Server: server, StatusCode: status, Body: body}, nil
		case status == http.StatusNotFound:
			r.logger.Debug("not found", "server", host, "path", path)
			return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, path)
		case status == http.StatusTooManyRequests:
			lastErr = "HTTP 429"
			r.logger.Warn("rate limited", "server", host, "wait", r.rateLimitWait)
			wait = r.rateLimitWait
		case status >= 500:
			lastErr = fmt.Sprintf("HTTP %d", status)
			r.logger.Warn("server error", "server", host, "status", status)
			wait = r.retryWait
		default:
			lastErr = fmt.Sprintf("HTTP %d", status)
			r.logger.Debug("unexpected status", "server", host, "status", status)
			wait = r.retryWait
		}

		if attempt == budget {
			break
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, r.abort(err)
		}
	}

	r.failed.Add(1)
	r.logger.Error("request failed", "path", path, "attempts", budget, "last_error", lastErr)
	return nil, fmt.Errorf("%w after %d attempts: %s", shared.ErrRequestFailed, budget, lastErr)
}

// abort counts a cancelled request as failed so the counters stay consistent.
func (r *Router) abort(err error) error {
	r.failed.Add(1)
	return err
}

// do runs one bounded attempt and reads the body while the per-request deadline still applies.
func (r *Router) do(ctx context.Context, endpoint string, params url.Values) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func describeTransportError(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "timeout"
	}
	return err.Error()
}

func hostOf(server string) string {
	if u, err := url.Parse(server); err == nil && u.Host != "" {
		return u.Host
	}
	return server
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
