// Package usecases holds the application flows behind the HTTP handlers.
package usecases

import (
	"context"
	"time"

	"xdownloader/internal/adapters/payload"
	"xdownloader/internal/domain"
	"xdownloader/pkg/log"
)

// TweetFetcher retrieves the raw document of a tweet.
type TweetFetcher interface {
	FetchTweet(ctx context.Context, id domain.TweetID) (payload.Raw, error)
}

// PayloadNormalizer turns a raw document into ordered tweet units.
type PayloadNormalizer interface {
	Normalize(raw payload.Raw, focalID domain.TweetID) ([]domain.TweetUnit, error)
}

// quotaRefreshTimeout bounds the quota read after a fetch.
const quotaRefreshTimeout = 3 * time.Second

// FetchResult is the outcome of one successful fetch.
type FetchResult struct {
	TweetID domain.TweetID
	Units   []domain.TweetUnit
}

// FetchTweetUseCase resolves user input to normalized tweet units.
type FetchTweetUseCase struct {
	fetcher    TweetFetcher
	normalizer PayloadNormalizer
	tracker    *RequestTracker
	quota      *QuotaTracker
}

// NewFetchTweetUseCase creates a new FetchTweetUseCase.
func NewFetchTweetUseCase(fetcher TweetFetcher, normalizer PayloadNormalizer, tracker *RequestTracker, quota *QuotaTracker) *FetchTweetUseCase {
	if tracker == nil {
		tracker = NewRequestTracker()
	}
	return &FetchTweetUseCase{
		fetcher:    fetcher,
		normalizer: normalizer,
		tracker:    tracker,
		quota:      quota,
	}
}

// Execute extracts the identifier from input, fetches and normalizes it.
//
// A newer Execute for the same session cancels this one, and this one then
// fails with domain.ErrSuperseded. Invalid input fails with
// domain.ErrInvalidIdentifier before any network call.
func (uc *FetchTweetUseCase) Execute(ctx context.Context, session, input string) (*FetchResult, error) {
	id, err := domain.ExtractTweetID(input)
	if err != nil {
		log.GlobalDebugCtx(ctx, "rejected input", "input", input)
		return nil, err
	}

	fetchCtx, ticket, cancel := uc.tracker.Begin(ctx, session, id)
	defer cancel()

	raw, err := uc.fetcher.FetchTweet(fetchCtx, id)

	// Retries are exhausted or the fetch succeeded, unless it was cancelled.
	if fetchCtx.Err() == nil {
		uc.refreshQuota(ctx)
	}

	if !uc.tracker.Finish(ticket) {
		log.GlobalInfoCtx(ctx, "discarding superseded fetch", "tweet_id", id)
		return nil, domain.ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	units, err := uc.normalizer.Normalize(raw, id)
	if err != nil {
		log.GlobalWarnCtx(ctx, "normalize failed", "tweet_id", id, "error", err)
		return nil, err
	}

	log.GlobalInfoCtx(ctx, "tweet fetched", "tweet_id", id, "units", len(units), "has_video", hasVideo(units))
	return &FetchResult{TweetID: id, Units: units}, nil
}

// Latest returns the last identifier requested in session.
func (uc *FetchTweetUseCase) Latest(session string) (domain.TweetID, bool) {
	return uc.tracker.Latest(session)
}

func (uc *FetchTweetUseCase) refreshQuota(ctx context.Context) {
	if uc.quota == nil {
		return
	}
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), quotaRefreshTimeout)
	defer cancel()
	// Refresh logs its own failures.
	_, _ = uc.quota.Refresh(qctx)
}

func hasVideo(units []domain.TweetUnit) bool {
	for _, u := range units {
		if u.HasVideo() {
			return true
		}
	}
	return false
}
