package domain

import "time"

// ListingKind selects one of the shared-database listings.
type ListingKind string

const (
	ListingTrending ListingKind = "trending"
	ListingRecent   ListingKind = "recent"
	ListingCreators ListingKind = "creators"
)

// ParseListingKind validates a listing name coming from a query string.
func ParseListingKind(s string) (ListingKind, error) {
	switch k := ListingKind(s); k {
	case ListingTrending, ListingRecent, ListingCreators:
		return k, nil
	default:
		return "", ErrUnknownListing
	}
}

// ListedTweet is a previously fetched tweet as stored in the shared database.
type ListedTweet struct {
	TweetID      string    `json:"tweet_id"`
	ScreenName   string    `json:"screen_name"`
	Name         string    `json:"name"`
	ProfileImage string    `json:"profile_image"`
	Text         string    `json:"tweet_text"`
	MediaURLs    []string  `json:"tweet_media"`
	Views        int64     `json:"views"`
	CreatedAt    time.Time `json:"created_at"`
}

// Creator aggregates the listed tweets of one account.
type Creator struct {
	ScreenName   string `json:"screen_name"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image"`
	TweetCount   int    `json:"tweet_count"`
	TotalViews   int64  `json:"total_views"`
}

// Listing is the result of one listing query. Exactly one of Tweets or Creators is set.
type Listing struct {
	Kind     ListingKind   `json:"kind"`
	Tweets   []ListedTweet `json:"tweets,omitempty"`
	Creators []Creator     `json:"creators,omitempty"`
}
