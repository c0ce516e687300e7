// Package components holds the reusable fragments of the pages.
package components

import (
	"net/url"
	"strconv"

	"xdownloader/internal/adapters/presenter"
	"xdownloader/internal/domain"
)

func cardID(index int) string {
	return "tweet-" + strconv.Itoa(index)
}

func counterClass(view presenter.TweetView) string {
	if view.OverLimit() {
		return "char-counter over-limit"
	}
	return "char-counter"
}

func heroTrigger(prefill string, autoload bool) string {
	if autoload && prefill != "" {
		return "submit, load"
	}
	return "submit"
}

func creatorStats(c domain.Creator) string {
	return strconv.Itoa(c.TweetCount) + " tweets · " + strconv.FormatInt(c.TotalViews, 10) + " views"
}

func mediaCount(t domain.ListedTweet) string {
	return strconv.Itoa(len(t.MediaURLs)) + " media"
}

// tweetLink opens t in the downloader.
func tweetLink(t domain.ListedTweet) string {
	return "/downloader?url=" + url.QueryEscape("https://x.com/"+t.ScreenName+"/status/"+t.TweetID)
}
