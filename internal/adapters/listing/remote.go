package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"xdownloader/internal/domain"
)

// RemoteLister queries the shared database API: GET <url>?action=<kind>&limit=<n>.
type RemoteLister struct {
	url     string
	doer    Doer
	timeout time.Duration
}

// NewRemoteLister creates a new RemoteLister.
func NewRemoteLister(url string, doer Doer, timeout time.Duration) *RemoteLister {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &RemoteLister{url: url, doer: doer, timeout: timeout}
}

type remoteResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type remoteTweet struct {
	TweetID      string          `json:"tweet_id"`
	ScreenName   string          `json:"screen_name"`
	Name         string          `json:"name"`
	ProfileImage string          `json:"profile_image"`
	Text         string          `json:"tweet_text"`
	MediaURLs    []string        `json:"tweet_media"`
	Views        int64           `json:"views"`
	CreatedAt    json.RawMessage `json:"created_at"`
}

// List implements Lister.
func (r *RemoteLister) List(ctx context.Context, kind domain.ListingKind, limit int) (domain.Listing, error) {
	body, err := r.Raw(ctx, string(kind), limit)
	if err != nil {
		return domain.Listing{}, err
	}

	var resp remoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Listing{}, fmt.Errorf("%w: decode: %v", domain.ErrListingUnavailable, err)
	}
	if !resp.Success {
		return domain.Listing{}, fmt.Errorf("%w: %s", domain.ErrListingUnavailable, resp.Error)
	}

	listing := domain.Listing{Kind: kind}
	if kind == domain.ListingCreators {
		if err := json.Unmarshal(resp.Data, &listing.Creators); err != nil {
			return domain.Listing{}, fmt.Errorf("%w: decode creators: %v", domain.ErrListingUnavailable, err)
		}
		return listing, nil
	}

	var tweets []remoteTweet
	if err := json.Unmarshal(resp.Data, &tweets); err != nil {
		return domain.Listing{}, fmt.Errorf("%w: decode tweets: %v", domain.ErrListingUnavailable, err)
	}
	for _, t := range tweets {
		listing.Tweets = append(listing.Tweets, domain.ListedTweet{
			TweetID:      t.TweetID,
			ScreenName:   t.ScreenName,
			Name:         t.Name,
			ProfileImage: t.ProfileImage,
			Text:         t.Text,
			MediaURLs:    t.MediaURLs,
			Views:        t.Views,
			CreatedAt:    parseTimestamp(t.CreatedAt),
		})
	}
	return listing, nil
}

// Raw returns the API answer unparsed, for the passthrough endpoint.
// An empty action is omitted from the query.
func (r *RemoteLister) Raw(ctx context.Context, action string, limit int) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	endpoint, err := url.Parse(r.url)
	if err != nil {
		return nil, fmt.Errorf("%w: listing url: %v", domain.ErrListingUnavailable, err)
	}
	q := endpoint.Query()
	if action != "" {
		q.Set("action", action)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrListingUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrListingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrListingUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", domain.ErrListingUnavailable, err)
	}
	return body, nil
}

// parseTimestamp accepts unix seconds or an RFC 3339 string.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var secs int64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
