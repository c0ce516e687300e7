// Package presenter maps normalized tweet units to display records.
package presenter

import (
	"unicode/utf8"

	"xdownloader/internal/domain"
)

// MaxVisibleMedia is how many attachments a card lays out.
const MaxVisibleMedia = 4

// MaxTweetLength is the limit shown by the edit counter.
const MaxTweetLength = 280

// Placeholder author identity. Units carry no author; the caller owns it.
const (
	PlaceholderName       = "name"
	PlaceholderScreenName = "screen_name"
)

// TweetView is what the tweet card and the JSON API render.
type TweetView struct {
	Name         string                  `json:"name"`
	ScreenName   string                  `json:"screen_name"`
	ProfileImage string                  `json:"profile_image"`
	Text         string                  `json:"tweet_text"`
	Media        []string                `json:"tweet_media"`
	MediaInfo    []domain.MediaReference `json:"medias_info"`
}

// Present converts units one to one, preserving order.
func Present(units []domain.TweetUnit) []TweetView {
	views := make([]TweetView, 0, len(units))
	for _, u := range units {
		views = append(views, presentUnit(u))
	}
	return views
}

func presentUnit(u domain.TweetUnit) TweetView {
	media := make([]string, 0, len(u.Medias))
	info := make([]domain.MediaReference, 0, len(u.Medias))
	for _, m := range u.Medias {
		media = append(media, m.URL)
		info = append(info, m)
	}
	return TweetView{
		Name:         PlaceholderName,
		ScreenName:   PlaceholderScreenName,
		ProfileImage: "",
		Text:         u.Text,
		Media:        media,
		MediaInfo:    info,
	}
}

// VisibleMedia returns at most MaxVisibleMedia attachments.
func (v TweetView) VisibleMedia() []domain.MediaReference {
	if len(v.MediaInfo) <= MaxVisibleMedia {
		return v.MediaInfo
	}
	return v.MediaInfo[:MaxVisibleMedia]
}

// Layout returns the grid class for the visible attachments.
func (v TweetView) Layout() string {
	switch len(v.VisibleMedia()) {
	case 0:
		return ""
	case 1:
		return "media-grid media-grid-1"
	case 2:
		return "media-grid media-grid-2"
	case 3:
		return "media-grid media-grid-3"
	default:
		return "media-grid media-grid-4"
	}
}

// CharCount counts runes, as the edit counter does.
func (v TweetView) CharCount() int {
	return utf8.RuneCountInString(v.Text)
}

// OverLimit reports whether the text exceeds MaxTweetLength.
func (v TweetView) OverLimit() bool {
	return v.CharCount() > MaxTweetLength
}
