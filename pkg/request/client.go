// Package request is the outbound HTTP layer for detection backends. It
// serializes requests per host, retries transient failures with
// exponential backoff, and tracks per-host health so callers can fail
// fast instead of stalling a tick on a dead backend.
package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"wayguard/pkg/config"
	"wayguard/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("Wayguard/%s (obstacle alert service)", version.Version)

// Client handles HTTP requests with per-host queuing and retry.
type Client struct {
	httpClient *http.Client
	retries    int
	baseDelay  time.Duration
	backoff    *HostBackoff

	queues map[string]chan job
	mu     sync.Mutex // protects queues
}

// job is one queued request. The body is kept as bytes so retries can
// rebuild the request reader.
type job struct {
	ctx      context.Context
	method   string
	url      string
	body     []byte
	headers  map[string]string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a Client from the request configuration.
func New(cfg *config.RequestConfig) *Client {
	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}
	base := time.Duration(cfg.Backoff.BaseDelay)
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout)},
		retries:    retries,
		baseDelay:  base,
		backoff:    NewHostBackoff(base, time.Duration(cfg.Backoff.MaxDelay)),
		queues:     make(map[string]chan job),
	}
}

// Backoff exposes per-host health for probes and status reporting.
func (c *Client) Backoff() *HostBackoff {
	return c.backoff
}

// Get performs a GET request through the host queue.
func (c *Client) Get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil, headers)
}

// Post performs a POST request through the host queue.
func (c *Client) Post(ctx context.Context, u string, body []byte, contentType string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, map[string]string{"Content-Type": contentType})
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, headers map[string]string) ([]byte, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	host := parsed.Host

	// Fail fast while the host is in backoff; a tick-bounded caller would
	// rather skip a cycle than wait out someone else's penalty.
	if !c.backoff.Ready(host) {
		return nil, fmt.Errorf("host %s still in backoff", host)
	}

	respChan := make(chan jobResult, 1)
	c.dispatch(host, job{ctx: ctx, method: method, url: u, body: body, headers: headers, respChan: respChan})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

// dispatch sends the job to the host's queue, creating the queue and its
// worker on first use.
func (c *Client) dispatch(host string, j job) {
	c.mu.Lock()
	q, ok := c.queues[host]
	if !ok {
		q = make(chan job, 8)
		c.queues[host] = q
		go c.worker(host, q)
	}
	c.mu.Unlock()

	select {
	case q <- j:
	case <-j.ctx.Done():
		j.respChan <- jobResult{err: j.ctx.Err()}
	}
}

// worker processes one host's requests sequentially.
func (c *Client) worker(host string, q <-chan job) {
	logger := slog.With("component", "request", "host", host)
	for j := range q {
		if j.ctx.Err() != nil {
			logger.Debug("job dropped, context expired", "error", j.ctx.Err())
			j.respChan <- jobResult{err: j.ctx.Err()}
			continue
		}

		body, err := c.execute(j)
		if err == nil {
			c.backoff.RecordSuccess(host)
		} else {
			c.backoff.RecordFailure(host)
		}
		j.respChan <- jobResult{body: body, err: err}
	}
}

// execute attempts the request with exponential backoff on retryable
// failures. A fresh request is built per attempt so POST bodies replay
// correctly.
func (c *Client) execute(j job) ([]byte, error) {
	for attempt := 0; attempt < c.retries; attempt++ {
		if j.ctx.Err() != nil {
			return nil, j.ctx.Err()
		}

		req, err := http.NewRequestWithContext(j.ctx, j.method, j.url, bytes.NewReader(j.body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		uaSet := false
		for k, v := range j.headers {
			req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				uaSet = true
			}
		}
		if !uaSet {
			req.Header.Set("User-Agent", defaultUserAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if j.ctx.Err() != nil {
				return nil, j.ctx.Err()
			}
			slog.Warn("request failed, retrying", "url", j.url, "attempt", attempt+1, "error", err)
			if !c.sleep(j.ctx, attempt) {
				return nil, j.ctx.Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			slog.Warn("backend backoff", "status", resp.StatusCode, "url", j.url, "attempt", attempt+1)
			if !c.sleep(j.ctx, attempt) {
				return nil, j.ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("api error: status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded")
}

// sleep waits out the attempt's backoff. Returns false if the context
// expired while waiting.
func (c *Client) sleep(ctx context.Context, attempt int) bool {
	d := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
