// Package upstream talks to the tweet lookup and quota APIs.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sethvargo/go-retry"

	"xdownloader/internal/adapters/payload"
	"xdownloader/internal/domain"
	"xdownloader/pkg/log"
)

// maxBodySize caps how much of an upstream answer is read.
const maxBodySize = 16 << 20

// Doer sends one HTTP request. *http.Client and *BrowserPool implement it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// lookupResponse is the envelope of the lookup endpoint.
type lookupResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// Client fetches raw tweet documents from the lookup endpoint.
type Client struct {
	lookupURL string
	doer      Doer
	policy    RetryPolicy
	logger    *log.Logger
}

// NewClient creates a new lookup client.
func NewClient(lookupURL string, doer Doer, policy RetryPolicy) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		lookupURL: lookupURL,
		doer:      doer,
		policy:    policy,
		logger:    log.Default().Named("upstream"),
	}
}

// FetchTweet looks up id, retrying transient failures with jittered delays.
// Terminal failures are returned as *domain.FetchError. A cancelled ctx stops
// the loop, pending delay included, and its error is returned as is.
func (c *Client) FetchTweet(ctx context.Context, id domain.TweetID) (payload.Raw, error) {
	var (
		raw      payload.Raw
		attempts int
	)

	err := retry.Do(ctx, c.policy.Backoff(), func(ctx context.Context) error {
		attempts++
		data, err := c.lookupOnce(ctx, id)
		if err != nil {
			if c.policy.Retryable(err) && ctx.Err() == nil {
				c.logger.WarnCtx(ctx, "lookup attempt failed", "tweet_id", id, "attempt", attempts, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		raw = data
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorCtx(ctx, "lookup failed", "tweet_id", id, "attempts", attempts, "error", err)
		return nil, domain.NewFetchError(id, attempts, err)
	}

	c.logger.DebugCtx(ctx, "lookup succeeded", "tweet_id", id, "attempts", attempts, "bytes", len(raw))
	return raw, nil
}

// Lookup performs a single attempt and returns the decoded envelope data.
// Used by the passthrough endpoint, which must not retry.
func (c *Client) Lookup(ctx context.Context, id domain.TweetID) (payload.Raw, error) {
	return c.lookupOnce(ctx, id)
}

func (c *Client) lookupOnce(ctx context.Context, id domain.TweetID) (payload.Raw, error) {
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}

	endpoint, err := url.Parse(c.lookupURL)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup url: %v", domain.ErrUpstreamUnavailable, err)
	}
	q := endpoint.Query()
	q.Set("tweet_id", id.String())
	endpoint.RawQuery = q.Encode()

	body, err := getJSON(ctx, c.doer, endpoint.String())
	if err != nil {
		return nil, err
	}

	var resp lookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode lookup response: %v", domain.ErrUpstreamUnavailable, err)
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "success=false"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstreamRejected, reason)
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, fmt.Errorf("%w: success without data", domain.ErrMalformedPayload)
	}
	return payload.Raw(resp.Data), nil
}

// getJSON issues a GET and returns the body of a 2xx answer.
func getJSON(ctx context.Context, doer Doer, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if id := log.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrUpstreamUnavailable, err)
	}
	return body, nil
}
