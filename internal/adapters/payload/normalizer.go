// Package payload turns the upstream tweet document into ordered tweet units.
package payload

import (
	"encoding/json"
	"fmt"
	"strings"

	"xdownloader/internal/domain"
)

const (
	tweetEntryPrefix  = "tweet-"
	threadEntryPrefix = "conversationthread-"
	addEntries        = "TimelineAddEntries"
)

// Normalizer walks a TweetDetail conversation and produces the primary tweet,
// its self-thread continuations and quoted tweets, in that order.
type Normalizer struct{}

// NewNormalizer creates a new Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// candidate is a usable tweet node with its position in the conversation.
type candidate struct {
	tweet   *tweetResult
	primary bool
}

// Normalize converts raw into tweet units. focalID selects the primary tweet;
// when it is empty or absent from the payload the first tweet entry is used.
// A payload without a usable primary tweet yields domain.ErrMalformedPayload.
func (n *Normalizer) Normalize(raw Raw, focalID domain.TweetID) ([]domain.TweetUnit, error) {
	entries, err := conversationEntries(raw)
	if err != nil {
		return nil, err
	}

	candidates := collectCandidates(entries, focalID)

	primaryIdx := -1
	for i, c := range candidates {
		if c.primary {
			primaryIdx = i
			break
		}
	}
	if primaryIdx < 0 {
		return nil, fmt.Errorf("%w: no root tweet", domain.ErrMalformedPayload)
	}

	primary := candidates[primaryIdx].tweet
	author := primary.authorID()
	thread := []*tweetResult{primary}
	seen := map[string]bool{}
	mark := func(id string) {
		if id != "" {
			seen[id] = true
		}
	}
	mark(primary.RestID)

	// Ancestors come before the primary entry and are never part of the thread.
	for _, c := range candidates[primaryIdx+1:] {
		t := c.tweet
		if seen[t.RestID] || t.authorID() != author {
			continue
		}
		if !seen[t.Legacy.InReplyToStatusID] {
			continue
		}
		thread = append(thread, t)
		mark(t.RestID)
	}

	var quotes []*tweetResult
	for _, t := range thread {
		if t.QuotedStatusResult == nil {
			continue
		}
		q := unwrap(t.QuotedStatusResult.Result)
		if q == nil || seen[q.RestID] {
			continue
		}
		quotes = append(quotes, q)
		mark(q.RestID)
	}

	units := make([]domain.TweetUnit, 0, len(thread)+len(quotes))
	for _, t := range thread {
		units = append(units, toUnit(t))
	}
	for _, q := range quotes {
		units = append(units, toUnit(q))
	}
	return units, nil
}

func conversationEntries(raw Raw) ([]entry, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrMalformedPayload)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}

	conv := doc.Threaded
	if doc.Data != nil && doc.Data.Threaded != nil {
		conv = doc.Data.Threaded
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: no conversation", domain.ErrMalformedPayload)
	}

	for _, ins := range conv.Instructions {
		if ins.Type == addEntries {
			return ins.Entries, nil
		}
	}
	// Older documents omit the instruction type.
	for _, ins := range conv.Instructions {
		if len(ins.Entries) > 0 {
			return ins.Entries, nil
		}
	}
	return nil, fmt.Errorf("%w: no timeline entries", domain.ErrMalformedPayload)
}

func collectCandidates(entries []entry, focalID domain.TweetID) []candidate {
	focalEntry := tweetEntryPrefix + focalID.String()
	hasFocal := false
	if focalID != "" {
		for _, e := range entries {
			if e.EntryID == focalEntry {
				hasFocal = true
				break
			}
		}
	}

	var out []candidate
	primaryTaken := false
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e.EntryID, tweetEntryPrefix):
			isPrimary := !primaryTaken && (e.EntryID == focalEntry || !hasFocal)
			if isPrimary {
				primaryTaken = true
			}
			if e.Content.ItemContent == nil {
				continue
			}
			t := unwrap(e.Content.ItemContent.TweetResults.Result)
			if t == nil {
				continue
			}
			out = append(out, candidate{tweet: t, primary: isPrimary})
		case strings.HasPrefix(e.EntryID, threadEntryPrefix):
			for _, item := range e.Content.Items {
				if item.Item.ItemContent == nil {
					continue
				}
				if t := unwrap(item.Item.ItemContent.TweetResults.Result); t != nil {
					out = append(out, candidate{tweet: t})
				}
			}
		}
	}
	return out
}

// unwrap resolves visibility wrappers and drops tombstones.
func unwrap(t *tweetResult) *tweetResult {
	for t != nil && t.Tweet != nil && (t.TypeName == "TweetWithVisibilityResults" || t.Legacy == nil) {
		t = t.Tweet
	}
	if t == nil || t.Legacy == nil {
		return nil
	}
	switch t.TypeName {
	case "TweetTombstone", "TweetUnavailable":
		return nil
	}
	return t
}

func toUnit(t *tweetResult) domain.TweetUnit {
	unit := domain.TweetUnit{
		Text:   t.text(),
		Medias: []domain.MediaReference{},
	}
	for _, m := range t.media() {
		if u := mediaURL(m); u != "" {
			unit.Medias = append(unit.Medias, domain.NewMediaReference(u))
		}
	}
	return unit
}

// mediaURL picks the highest-bitrate mp4 for videos and gifs, the https
// url for photos.
func mediaURL(m mediaEntity) string {
	if m.Type != "video" && m.Type != "animated_gif" {
		return m.MediaURLHTTPS
	}
	if m.VideoInfo == nil {
		return m.MediaURLHTTPS
	}

	best := -1
	var url string
	for _, v := range m.VideoInfo.Variants {
		if v.ContentType != "video/mp4" || v.URL == "" {
			continue
		}
		if v.Bitrate > best {
			best = v.Bitrate
			url = v.URL
		}
	}
	if url == "" {
		return m.MediaURLHTTPS
	}
	return url
}
