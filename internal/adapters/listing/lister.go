// Package listing reads previously fetched tweets from the shared database,
// either through its HTTP API or directly.
package listing

import (
	"context"
	"net/http"

	"xdownloader/internal/domain"
)

// Lister returns one listing of at most limit items.
type Lister interface {
	List(ctx context.Context, kind domain.ListingKind, limit int) (domain.Listing, error)
}

// Doer sends one HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}
