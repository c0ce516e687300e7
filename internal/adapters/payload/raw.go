package payload

import "encoding/json"

// Raw is the upstream tweet document, passed through untouched until normalization.
type Raw = json.RawMessage

// document accepts both {"data":{"threaded_conversation_with_injections_v2":...}}
// and the unwrapped inner object.
type document struct {
	Data     *conversationData     `json:"data"`
	Threaded *threadedConversation `json:"threaded_conversation_with_injections_v2"`
}

type conversationData struct {
	Threaded *threadedConversation `json:"threaded_conversation_with_injections_v2"`
}

type threadedConversation struct {
	Instructions []instruction `json:"instructions"`
}

type instruction struct {
	Type    string  `json:"type"`
	Entries []entry `json:"entries"`
}

type entry struct {
	EntryID string       `json:"entryId"`
	Content entryContent `json:"content"`
}

type entryContent struct {
	ItemContent *itemContent `json:"itemContent"`
	Items       []moduleItem `json:"items"`
}

type moduleItem struct {
	EntryID string `json:"entryId"`
	Item    struct {
		ItemContent *itemContent `json:"itemContent"`
	} `json:"item"`
}

type itemContent struct {
	TweetResults tweetResults `json:"tweet_results"`
}

type tweetResults struct {
	Result *tweetResult `json:"result"`
}

type tweetResult struct {
	TypeName           string        `json:"__typename"`
	RestID             string        `json:"rest_id"`
	Core               *tweetCore    `json:"core"`
	Legacy             *tweetLegacy  `json:"legacy"`
	NoteTweet          *noteTweet    `json:"note_tweet"`
	QuotedStatusResult *tweetResults `json:"quoted_status_result"`
	Tweet              *tweetResult  `json:"tweet"` // TweetWithVisibilityResults
}

type tweetCore struct {
	UserResults struct {
		Result *struct {
			RestID string `json:"rest_id"`
		} `json:"result"`
	} `json:"user_results"`
}

type tweetLegacy struct {
	FullText          string         `json:"full_text"`
	UserID            string         `json:"user_id_str"`
	InReplyToStatusID string         `json:"in_reply_to_status_id_str"`
	Entities          *mediaEntities `json:"entities"`
	ExtendedEntities  *mediaEntities `json:"extended_entities"`
}

type noteTweet struct {
	NoteTweetResults struct {
		Result struct {
			Text string `json:"text"`
		} `json:"result"`
	} `json:"note_tweet_results"`
}

type mediaEntities struct {
	Media []mediaEntity `json:"media"`
}

type mediaEntity struct {
	Type          string     `json:"type"`
	MediaURLHTTPS string     `json:"media_url_https"`
	VideoInfo     *videoInfo `json:"video_info"`
}

type videoInfo struct {
	Variants []videoVariant `json:"variants"`
}

type videoVariant struct {
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

func (t *tweetResult) authorID() string {
	if t.Core != nil && t.Core.UserResults.Result != nil && t.Core.UserResults.Result.RestID != "" {
		return t.Core.UserResults.Result.RestID
	}
	return t.Legacy.UserID
}

// text prefers the long-form note body, which the legacy field truncates.
func (t *tweetResult) text() string {
	if t.NoteTweet != nil {
		if s := t.NoteTweet.NoteTweetResults.Result.Text; s != "" {
			return s
		}
	}
	return t.Legacy.FullText
}

func (t *tweetResult) media() []mediaEntity {
	if t.Legacy.ExtendedEntities != nil && len(t.Legacy.ExtendedEntities.Media) > 0 {
		return t.Legacy.ExtendedEntities.Media
	}
	if t.Legacy.Entities != nil {
		return t.Legacy.Entities.Media
	}
	return nil
}
