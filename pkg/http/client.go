package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

// StatusError is returned when the remote side answers with a non 200 status code
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http request failed with status %v, error: %v", e.StatusCode, e.Body)
}

// Client represents default http client that can be used to send requests to third party services
type Client struct {
	base    http.Client
	headers http.Header
}

// Option configures a Client
type Option func(*Client)

// WithHeader adds a header to every request sent by the client
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// NewClient returns new instance of custom client
func NewClient(c http.Client, opts ...Option) *Client {
	client := &Client{
		base:    c,
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewRetryableClient returns a client that retries transport errors and 5xx answers up to retryMax times.
// timeout bounds every single attempt.
func NewRetryableClient(retryMax int, timeout time.Duration, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return NewClient(http.Client{Transport: &retryablehttp.RoundTripper{Client: rc}}, opts...)
}

// Post send posts request to url with additional headers
func (c *Client) Post(ctx context.Context, url string, req []byte) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(req))
	if err != nil {
		return nil, err
	}
	request.Header.Add("Content-Type", "application/json")
	c.addHeaders(ctx, request)

	return executeRequest(ctx, c, request)
}

// Get send request to url with requestID headers
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	c.addHeaders(ctx, req)

	return executeRequest(ctx, c, req)
}

func (c *Client) addHeaders(ctx context.Context, r *http.Request) {
	for k, v := range c.headers {
		r.Header[k] = v
	}
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		r.Header.Add(middleware.RequestIDHeader, requestID)
	}
}

// executeRequest contains common logic of request execution
func executeRequest(ctx context.Context, c *Client, r *http.Request) ([]byte, error) {
	resp, err := c.base.Do(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Error(ctx, "can not close body", "err", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
