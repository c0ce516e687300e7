// Package domain contains the core entities shared by every adapter.
package domain

import "strings"

// TweetID is a numeric tweet identifier kept as a string (it exceeds 2^53).
type TweetID string

func (id TweetID) String() string {
	return string(id)
}

// MediaKind tells display code whether to render an <img> or a <video>.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaReference is one attachment of a tweet unit.
type MediaReference struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"type"`
}

// NewMediaReference classifies url and returns the reference.
func NewMediaReference(url string) MediaReference {
	return MediaReference{URL: url, Kind: ClassifyMedia(url)}
}

// ClassifyMedia derives the kind from the URL alone; the upstream has no type field
// we can rely on after variant selection.
func ClassifyMedia(url string) MediaKind {
	if strings.Contains(url, ".mp4") || strings.HasPrefix(url, "data:video") {
		return MediaVideo
	}
	return MediaImage
}

// TweetUnit is one normalized post of a thread: primary, continuation or quote.
type TweetUnit struct {
	Text   string           `json:"text"`
	Medias []MediaReference `json:"medias"`
}

// HasVideo reports whether any attachment is a video.
func (u TweetUnit) HasVideo() bool {
	for _, m := range u.Medias {
		if m.Kind == MediaVideo {
			return true
		}
	}
	return false
}
