// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the index clients.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pdiddy/esgf-harvest/internal/logging"
)

// RetryBaseDelay is the first backoff after an HTTP 429 response. Tests
// override it to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryDelay caps any single backoff, including Retry-After hints.
var MaxRetryDelay = 2 * time.Minute

const defaultMaxRetries = 5

// DoWithRetry executes req and retries on HTTP 429 (Too Many Requests).
//
// The wait honors a Retry-After header given in seconds; otherwise it starts
// at RetryBaseDelay and doubles each attempt. When maxRetries is 0 the
// default (5) is used. Request bodies must be replayable (req.GetBody set),
// which http.NewRequest arranges for bytes and strings readers. After
// exhausting retries the last 429 response is returned for the caller to
// inspect. A context cancelled while waiting returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	log := logging.FromContext(ctx)

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		wait := backoff(attempt, resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		log.Warn().
			Str("host", req.URL.Host).
			Dur("wait", wait).
			Int("attempt", attempt+1).
			Int("max_retries", maxRetries).
			Msg("rate limited, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func backoff(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		if time.Duration(secs) > MaxRetryDelay/time.Second {
			return MaxRetryDelay
		}
		return time.Duration(secs) * time.Second
	}
	// The doubling stops at MaxRetryDelay before the shift can overflow.
	if attempt >= 63 || RetryBaseDelay > MaxRetryDelay>>attempt {
		return MaxRetryDelay
	}
	return RetryBaseDelay << attempt
}
