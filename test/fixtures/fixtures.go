// Package fixtures builds upstream tweet documents for tests.
package fixtures

import (
	"encoding/json"
)

// Author of every fixture tweet unless a test overrides it.
const (
	DefaultAuthorID = "44196397"
	OtherAuthorID   = "783214"
)

// Variant is one encoding of a video.
type Variant struct {
	Bitrate     int
	ContentType string
	URL         string
}

// Video describes a video or gif attachment.
type Video struct {
	Type      string // "video" or "animated_gif"
	Thumbnail string
	Variants  []Variant
}

// Tweet describes one tweet node.
type Tweet struct {
	ID         string
	AuthorID   string
	Text       string
	NoteText   string
	InReplyTo  string
	Photos     []string
	Videos     []Video
	Quoted     *Tweet
	Visibility bool
	Tombstone  bool
	// LegacyEntities puts media under entities instead of extended_entities.
	LegacyEntities bool
}

// Result renders the tweet_results.result node.
func (t Tweet) Result() map[string]any {
	if t.Tombstone {
		return map[string]any{
			"__typename": "TweetTombstone",
			"tombstone":  map[string]any{"text": map[string]any{"text": "This Post was deleted."}},
		}
	}

	author := t.AuthorID
	if author == "" {
		author = DefaultAuthorID
	}

	var media []any
	for _, p := range t.Photos {
		media = append(media, map[string]any{
			"type":            "photo",
			"media_url_https": p,
		})
	}
	for _, v := range t.Videos {
		var variants []any
		for _, vr := range v.Variants {
			variant := map[string]any{"content_type": vr.ContentType, "url": vr.URL}
			if vr.ContentType == "video/mp4" {
				variant["bitrate"] = vr.Bitrate
			}
			variants = append(variants, variant)
		}
		kind := v.Type
		if kind == "" {
			kind = "video"
		}
		media = append(media, map[string]any{
			"type":            kind,
			"media_url_https": v.Thumbnail,
			"video_info":      map[string]any{"variants": variants},
		})
	}

	legacy := map[string]any{
		"full_text":   t.Text,
		"user_id_str": author,
		"id_str":      t.ID,
	}
	if t.InReplyTo != "" {
		legacy["in_reply_to_status_id_str"] = t.InReplyTo
	}
	if len(media) > 0 {
		key := "extended_entities"
		if t.LegacyEntities {
			key = "entities"
		}
		legacy[key] = map[string]any{"media": media}
	}

	result := map[string]any{
		"__typename": "Tweet",
		"rest_id":    t.ID,
		"core": map[string]any{
			"user_results": map[string]any{
				"result": map[string]any{"__typename": "User", "rest_id": author},
			},
		},
		"legacy": legacy,
	}
	if t.NoteText != "" {
		result["note_tweet"] = map[string]any{
			"note_tweet_results": map[string]any{
				"result": map[string]any{"text": t.NoteText},
			},
		}
	}
	if t.Quoted != nil {
		result["quoted_status_result"] = map[string]any{"result": t.Quoted.Result()}
	}

	if t.Visibility {
		return map[string]any{
			"__typename": "TweetWithVisibilityResults",
			"tweet":      result,
		}
	}
	return result
}

// TweetEntry renders a top-level "tweet-<id>" timeline entry.
func TweetEntry(t Tweet) map[string]any {
	return map[string]any{
		"entryId": "tweet-" + t.ID,
		"content": map[string]any{
			"entryType": "TimelineTimelineItem",
			"itemContent": map[string]any{
				"itemType":      "TimelineTweet",
				"tweet_results": map[string]any{"result": t.Result()},
			},
		},
	}
}

// ThreadModule renders a "conversationthread-<id>" module holding tweets.
func ThreadModule(id string, tweets ...Tweet) map[string]any {
	items := make([]any, 0, len(tweets))
	for _, t := range tweets {
		items = append(items, map[string]any{
			"entryId": "conversationthread-" + id + "-tweet-" + t.ID,
			"item": map[string]any{
				"itemContent": map[string]any{
					"itemType":      "TimelineTweet",
					"tweet_results": map[string]any{"result": t.Result()},
				},
			},
		})
	}
	return map[string]any{
		"entryId": "conversationthread-" + id,
		"content": map[string]any{
			"entryType": "TimelineTimelineModule",
			"items":     items,
		},
	}
}

// Document wraps entries in a TweetDetail response.
func Document(entries ...map[string]any) []byte {
	list := make([]any, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	return mustJSON(map[string]any{
		"data": map[string]any{
			"threaded_conversation_with_injections_v2": map[string]any{
				"instructions": []any{
					map[string]any{"type": "TimelineClearCache"},
					map[string]any{"type": "TimelineAddEntries", "entries": list},
				},
			},
		},
	})
}

// LookupResponse renders the upstream lookup envelope.
func LookupResponse(success bool, data []byte, errMsg string) []byte {
	body := map[string]any{"success": success}
	if data != nil {
		body["data"] = json.RawMessage(data)
	}
	if errMsg != "" {
		body["error"] = errMsg
	}
	return mustJSON(body)
}

// SingleTweetID is the id of SingleTweet's only tweet.
const SingleTweetID = "1234567890123456789"

// SingleTweet is one tweet with two photos.
func SingleTweet() []byte {
	return Document(TweetEntry(Tweet{
		ID:   SingleTweetID,
		Text: "Hello world https://t.co/abc123",
		Photos: []string{
			"https://pbs.twimg.com/media/first.jpg",
			"https://pbs.twimg.com/media/second.jpg",
		},
	}))
}

// ThreadRootID is the primary tweet of ThreadWithQuote.
const ThreadRootID = "1800000000000000001"

// ThreadWithQuote is a primary tweet, two self-thread continuations, a reply by
// someone else, and a quoted tweet on the primary.
func ThreadWithQuote() []byte {
	quoted := Tweet{
		ID:       "1700000000000000009",
		AuthorID: OtherAuthorID,
		Text:     "quoted text",
		Videos: []Video{{
			Thumbnail: "https://pbs.twimg.com/ext_tw_video_thumb/q.jpg",
			Variants: []Variant{
				{ContentType: "application/x-mpegURL", URL: "https://video.twimg.com/q.m3u8"},
				{Bitrate: 832000, ContentType: "video/mp4", URL: "https://video.twimg.com/q/480x852/q.mp4"},
			},
		}},
	}
	root := Tweet{
		ID:     ThreadRootID,
		Text:   "1/ thread start",
		Photos: []string{"https://pbs.twimg.com/media/root.jpg"},
		Quoted: &quoted,
	}
	second := Tweet{ID: "1800000000000000002", Text: "2/ more", InReplyTo: ThreadRootID}
	stranger := Tweet{ID: "1800000000000000050", AuthorID: OtherAuthorID, Text: "nice thread", InReplyTo: ThreadRootID}
	third := Tweet{
		ID:        "1800000000000000003",
		Text:      "3/ end",
		InReplyTo: "1800000000000000002",
		Photos:    []string{"https://pbs.twimg.com/media/third.png"},
	}

	return Document(
		TweetEntry(root),
		TweetEntry(second),
		ThreadModule("1800000000000000050", stranger),
		ThreadModule("1800000000000000003", third),
	)
}

// VisibilityWrapped is SingleTweet's shape wrapped in TweetWithVisibilityResults.
func VisibilityWrapped() []byte {
	return Document(TweetEntry(Tweet{
		ID:         SingleTweetID,
		Text:       "limited reach",
		Visibility: true,
		Photos:     []string{"https://pbs.twimg.com/media/wrapped.jpg"},
	}))
}

// MissingRoot has a conversation but no tweet entries.
func MissingRoot() []byte {
	return Document(map[string]any{
		"entryId": "cursor-bottom-1",
		"content": map[string]any{"entryType": "TimelineTimelineCursor", "value": "abc"},
	})
}

// Textless is a tweet with neither text nor media.
func Textless() []byte {
	return Document(TweetEntry(Tweet{ID: SingleTweetID}))
}

// VideoTweet carries a video with several bitrates and a gif.
func VideoTweet() []byte {
	return Document(TweetEntry(Tweet{
		ID:   SingleTweetID,
		Text: "watch this",
		Videos: []Video{
			{
				Thumbnail: "https://pbs.twimg.com/ext_tw_video_thumb/v.jpg",
				Variants: []Variant{
					{Bitrate: 256000, ContentType: "video/mp4", URL: "https://video.twimg.com/v/320x568/low.mp4"},
					{ContentType: "application/x-mpegURL", URL: "https://video.twimg.com/v/pl.m3u8"},
					{Bitrate: 2176000, ContentType: "video/mp4", URL: "https://video.twimg.com/v/720x1280/high.mp4"},
					{Bitrate: 832000, ContentType: "video/mp4", URL: "https://video.twimg.com/v/480x852/mid.mp4"},
				},
			},
			{
				Type:      "animated_gif",
				Thumbnail: "https://pbs.twimg.com/tweet_video_thumb/g.jpg",
				Variants:  []Variant{{Bitrate: 0, ContentType: "video/mp4", URL: "https://video.twimg.com/tweet_video/g.mp4"}},
			},
		},
	}))
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
