// Package httpclient is the shared outbound HTTP plumbing for external
// verification vendors: a resty client behind a circuit breaker.
//
// The client never retries internally; failed calls surface as gateway errors
// and the caller decides whether to retry. The breaker only sheds load once a
// vendor is persistently failing.
package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	dErrors "onboard/pkg/domain-errors"
)

// Client wraps resty with a named circuit breaker per vendor.
type Client struct {
	rest    *resty.Client
	breaker *gobreaker.CircuitBreaker
	vendor  string
}

// Config carries per-vendor connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New builds a vendor client. The vendor name tags errors and the breaker.
func New(vendor string, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		rest.SetHeader("X-Api-Key", cfg.APIKey)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    vendor,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{rest: rest, breaker: breaker, vendor: vendor}
}

// Vendor returns the tag used in errors and metrics.
func (c *Client) Vendor() string {
	return c.vendor
}

// Post executes a JSON POST through the breaker, decoding into out when
// out is non-nil.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.execute(ctx, path, func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(body).Post(path)
	}, out)
}

// Get executes a GET through the breaker, decoding into out when out is
// non-nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.execute(ctx, path, func(req *resty.Request) (*resty.Response, error) {
		return req.Get(path)
	}, out)
}

func (c *Client) execute(ctx context.Context, path string, do func(*resty.Request) (*resty.Response, error), out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		req := c.rest.R().SetContext(ctx)
		if out != nil {
			req.SetResult(out)
		}
		resp, err := do(req)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%s %s: status %d", c.vendor, path, resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeGateway, c.vendor, err)
	}
	return nil
}
