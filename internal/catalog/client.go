package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"bixi/internal/config"
)

var ErrUnexpectedStatus = errors.New("unexpected status")

type Client struct {
	cfg     config.Config
	http    *resty.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:     cfg,
		http:    resty.New(),
		limiter: newLimiter(cfg.HTTPRateLimitRPS),
		logger:  logger,
	}

	c.http.SetTimeout(time.Duration(cfg.HTTPTimeoutMs) * time.Millisecond)
	c.http.SetHeader("User-Agent", "bixi-rides-etl/1.0")
	c.http.SetRetryCount(cfg.HTTPRetries)
	c.http.SetRetryWaitTime(250 * time.Millisecond)
	c.http.SetRetryMaxWaitTime(4 * time.Second)
	c.http.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return isRetryableStatus(r.StatusCode())
	})
	c.http.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if err := c.limiter.Wait(r.Context()); err != nil {
			return err
		}
		c.logger.Debug("http request", "method", r.Method, "url", r.URL)
		return nil
	})

	return c
}

// SetTransport replaces the transport of the underlying HTTP client.
func (c *Client) SetTransport(rt http.RoundTripper) *Client {
	c.http.SetTransport(rt)
	return c
}

// FetchPage returns the body of a page.
func (c *Client) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status=%d url=%s", ErrUnexpectedStatus, resp.StatusCode(), pageURL)
	}
	return resp.Body(), nil
}

// OpenArchive starts a download and returns the streamed body. The caller
// closes it.
func (c *Client) OpenArchive(ctx context.Context, archiveURL string) (io.ReadCloser, error) {
	resp, err := c.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(archiveURL)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", archiveURL, err)
	}
	body := resp.RawBody()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		if body != nil {
			_ = body.Close()
		}
		return nil, fmt.Errorf("%w: status=%d url=%s", ErrUnexpectedStatus, resp.StatusCode(), archiveURL)
	}
	return body, nil
}

// newLimiter spaces requests at rps with no burst beyond one request per
// slot; rps <= 0 disables limiting.
func newLimiter(rps int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
