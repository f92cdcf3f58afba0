// Package transport adapts pkg/http's fluent retry-aware client onto the
// query.Fetcher contract, rather than reimplementing request building,
// retry/backoff, or timeouts.
package transport

import (
	"context"
	"fmt"
	"time"

	httpclient "github.com/shashiranjanraj/qcache/pkg/http"
	"github.com/shashiranjanraj/qcache/querycache/query"
)

// HTTPFetcher implements query.Fetcher over pkg/http.
type HTTPFetcher struct {
	// Retries/RetryWait configure pkg/http's backoff; zero Retries defaults
	// to 1 (pkg/http's own "no retry" baseline).
	Retries   int
	RetryWait time.Duration
	Timeout   time.Duration

	// BearerToken, when set, is attached to every request via pkg/http's
	// own Bearer helper — a fetcher-wide credential for definitions whose
	// backend guards mutation endpoints with JWT auth.
	BearerToken string
}

// NewHTTPFetcher builds an HTTPFetcher with the given retry policy,
// defaulting to pkg/http's own baseline when policy.Enabled is false.
func NewHTTPFetcher(policy query.RetryPolicy) *HTTPFetcher {
	f := &HTTPFetcher{Timeout: 30 * time.Second}
	if policy.Enabled {
		attempts := policy.MaxAttempts
		if attempts <= 0 {
			attempts = 3
		}
		wait := policy.BaseDelay
		if wait <= 0 {
			wait = 500 * time.Millisecond
		}
		f.Retries = attempts
		f.RetryWait = wait
	} else {
		f.Retries = 1
	}
	return f
}

// Fetch builds a pkg/http request from req, reusing its Retry/Timeout
// support, and surfaces a non-2xx status as an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, req query.Request) (query.Response, error) {
	var builder *httpclient.Request
	switch req.Method {
	case "GET", "":
		builder = httpclient.Get(req.URL)
	case "POST":
		builder = httpclient.Post(req.URL)
	case "PUT":
		builder = httpclient.Put(req.URL)
	case "PATCH":
		builder = httpclient.Patch(req.URL)
	case "DELETE":
		builder = httpclient.Delete(req.URL)
	default:
		return query.Response{}, fmt.Errorf("transport: unsupported method %q", req.Method)
	}

	builder = builder.WithContext(ctx).Headers(req.Headers).Timeout(f.Timeout)
	if f.BearerToken != "" {
		builder = builder.Bearer(f.BearerToken)
	}
	if f.Retries > 0 {
		builder = builder.Retry(f.Retries, f.RetryWait)
	}
	if len(req.Body) > 0 {
		builder = builder.Body(req.Body)
	}

	resp, err := builder.Send()
	if err != nil {
		return query.Response{}, err
	}
	if err := resp.Throw(); err != nil {
		return query.Response{}, err
	}

	return query.Response{StatusCode: resp.StatusCode, Body: resp.Raw}, nil
}
