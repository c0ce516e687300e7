package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// statusIDRegex matches the canonical status path segment. Snowflake ids are 19 digits.
var statusIDRegex = regexp.MustCompile(`status/(\d{19})`)

// ExtractTweetID derives a tweet id from a tweet URL or a bare id.
//
// A "status/<19 digits>" segment wins. Otherwise the last non-empty path
// component is used, so "user/1234567890123456789" and a bare id both work.
// The fallback must be all digits, else ErrInvalidIdentifier.
func ExtractTweetID(input string) (TweetID, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrInvalidIdentifier
	}

	if m := statusIDRegex.FindStringSubmatch(input); m != nil {
		return TweetID(m[1]), nil
	}

	candidate := lastPathComponent(stripQuery(input))
	if !isDigits(candidate) {
		return "", ErrInvalidIdentifier
	}
	return TweetID(candidate), nil
}

// stripQuery drops "?..." and "#..." so a trailing "?s=20" does not end up in the id.
func stripQuery(input string) string {
	if u, err := url.Parse(input); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Path
	}
	if i := strings.IndexAny(input, "?#"); i >= 0 {
		return input[:i]
	}
	return input
}

func lastPathComponent(path string) string {
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
