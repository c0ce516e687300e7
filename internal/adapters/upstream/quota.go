package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"xdownloader/internal/domain"
)

// QuotaClient reads the remaining upstream call count.
type QuotaClient struct {
	url     string
	doer    Doer
	timeout time.Duration
}

// NewQuotaClient creates a new quota reader.
func NewQuotaClient(url string, doer Doer, timeout time.Duration) *QuotaClient {
	return &QuotaClient{url: url, doer: doer, timeout: timeout}
}

// Remaining returns the {"data": n} value of the quota endpoint.
func (q *QuotaClient) Remaining(ctx context.Context) (int64, error) {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	body, err := getJSON(ctx, q.doer, q.url)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Data *json.Number `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: decode quota: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.Data == nil {
		return 0, fmt.Errorf("%w: quota without data", domain.ErrUpstreamUnavailable)
	}
	if n, err := resp.Data.Int64(); err == nil {
		return n, nil
	}
	f, err := resp.Data.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: quota %q: %v", domain.ErrUpstreamUnavailable, resp.Data.String(), err)
	}
	return int64(f), nil
}
