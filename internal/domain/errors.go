package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier is returned when no numeric tweet id can be derived from the input.
	ErrInvalidIdentifier = errors.New("invalid tweet identifier")

	// ErrUpstreamUnavailable covers transport failures, non-2xx answers and undecodable bodies.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamRejected is returned when the upstream answers success=false.
	ErrUpstreamRejected = errors.New("upstream rejected request")

	// ErrMalformedPayload is returned when the upstream claims success but the payload
	// lacks a usable root tweet.
	ErrMalformedPayload = errors.New("malformed tweet payload")

	// ErrSuperseded is returned when a newer request from the same session replaced this one.
	ErrSuperseded = errors.New("request superseded by a newer one")

	// ErrRateLimited is returned when a client exceeds the fetch rate limit.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrListingUnavailable is returned when neither listing source answered.
	ErrListingUnavailable = errors.New("listing unavailable")

	// ErrUnknownListing is returned for an unsupported listing kind.
	ErrUnknownListing = errors.New("unknown listing kind")
)

// FetchError wraps a terminal fetch failure with the tweet and attempt count.
type FetchError struct {
	TweetID  TweetID
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch tweet %s after %d attempt(s): %v", e.TweetID, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a FetchError.
func NewFetchError(id TweetID, attempts int, err error) *FetchError {
	return &FetchError{TweetID: id, Attempts: attempts, Err: err}
}
