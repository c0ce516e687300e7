// Package pages holds the full HTML documents.
package pages

import "xdownloader/internal/usecases"

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate -path ..

// AppName is shown in titles and the header.
var AppName = "X Downloader"

// HomeData is what the landing page shows besides the form.
type HomeData struct {
	Remaining      int64
	RemainingKnown bool
	ListingEnabled bool
	Listings       usecases.HomeListings
}
