package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/use-agent/coastwatch/models"
)

// maxBody caps how much of an upstream response is read.
const maxBody = 10 << 20

// Response is a completed upstream call, successful or not.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher issues GET requests bound to a per-call deadline.
// It is safe for concurrent use.
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher over transport. A nil transport uses
// DefaultTransport.
func New(transport http.RoundTripper) *Fetcher {
	if transport == nil {
		transport = DefaultTransport()
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Fetch GETs url with headers and gives the whole call, body included,
// timeout to settle. When the deadline fires the in-flight request is
// aborted and an UPSTREAM_TIMEOUT error is returned; other transport
// failures are FETCH_FAILED. A non-2xx response is returned as is.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		return nil, models.NewProxyError(models.ErrCodeInternal, "fetch timeout must be positive", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.NewProxyError(models.ErrCodeFetch, "build upstream request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "coastwatch/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(callCtx, err, timeout, "upstream request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, classify(callCtx, err, timeout, "read upstream body")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// classify separates our own deadline firing from every other failure.
func classify(callCtx context.Context, err error, timeout time.Duration, msg string) *models.ProxyError {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return models.NewProxyError(models.ErrCodeUpstreamTimeout,
			fmt.Sprintf("upstream did not respond within %s", timeout), err)
	}
	return models.NewProxyError(models.ErrCodeFetch, msg, err)
}
