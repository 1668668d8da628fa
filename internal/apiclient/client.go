// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apiclient is a small JSON-over-HTTP client shared by the weather
// archive and geocoding collaborators.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
	"github.com/Amenkhnisi/strom-sense/internal/version"
)

// Options configures a Client
type Options struct {
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	// Backoff is the delay before the first retry; it doubles per attempt
	Backoff    time.Duration
	HTTPClient *http.Client
}

// Client performs rate limited GET requests that decode JSON responses
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *logger.Logger
}

// New creates a client
func New(opts Options, log *logger.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: max(opts.MaxRetries, 0),
		backoff:    backoff,
		logger:     log,
	}
}

// GetJSON requests endpoint with the given query parameters and decodes the
// JSON body into out. Transport failures, 429 and 5xx responses are retried
// up to MaxRetries times.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	target := endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	delay := c.backoff
	for attempt := 0; ; attempt++ {
		err := c.get(ctx, target, out)
		if err == nil {
			return nil
		}

		var apiErr *apperr.APIError
		if attempt >= c.maxRetries || !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return err
		}

		c.logger.Debug("Retrying API request", "endpoint", endpoint, "attempt", attempt+1, "delay", delay)
		select {
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "apiclient: waiting to retry")
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *Client) get(ctx context.Context, target string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "apiclient: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return eris.Wrap(err, "apiclient: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	c.logger.LogAPIRequest(http.MethodGet, target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "apiclient: request cancelled")
		}
		return &apperr.APIError{
			Endpoint: target,
			Message:  "request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperr.APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   target,
			Message:    "failed to read response body",
			Err:        err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.LogAPIError(target, resp.StatusCode, fmt.Errorf("%s", truncate(string(body), 200)))
		return &apperr.APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   target,
			Message:    truncate(string(body), 200),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &apperr.DataError{DataType: "json", Message: fmt.Sprintf("decode response from %s: %v", target, err)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
