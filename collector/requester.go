package collector

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
)

const (
	// DefaultUserAgent identifies the crawler to the sites it visits.
	DefaultUserAgent = "WebCrawler/0.1 (+https://github.com/webcrawler)"
	// DefaultAgentName is matched against robots.txt User-agent lines.
	DefaultAgentName = "WebCrawler"
)

type Requester interface {
	GetRequest(ctx context.Context, url string) (*http.Response, error)
}

type Request struct {
	UserAgent string
	Client    *http.Client
	Timeout   time.Duration
	// Limiter, when set, caps the overall request rate on top of the
	// per-authority crawl delay.
	Limiter *rate.Limiter
}

func NewRequest(timeout time.Duration) *Request {
	return &Request{
		UserAgent: DefaultUserAgent,
		Client:    &http.Client{Timeout: timeout},
		Timeout:   timeout,
	}
}

func (r *Request) GetRequest(ctx context.Context, url string) (*http.Response, error) {
	return r.Request(ctx, url, http.MethodGet)
}

// Request performs the call and fails on any status other than 200. The
// caller owns the body of a successful response.
func (r *Request) Request(ctx context.Context, url string, method string) (*http.Response, error) {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return nil, xerrors.Errorf("rate limiter: %w", err)
		}
	}

	request, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, xerrors.Errorf("new http request failed: %w", err)
	}
	request.Header.Set("User-Agent", r.UserAgent)

	response, err := r.Client.Do(request)
	if err != nil {
		return nil, xerrors.Errorf("http request failed: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()
		return nil, xerrors.Errorf("status code: %d", response.StatusCode)
	}
	return response, nil
}
