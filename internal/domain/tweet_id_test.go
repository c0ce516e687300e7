package domain_test

import (
	"errors"
	"testing"

	"xdownloader/internal/domain"
)

func TestExtractTweetID_StatusURL_ReturnsID(t *testing.T) {
	// Arrange
	input := "https://x.com/user/status/1234567890123456789"

	// Act
	id, err := domain.ExtractTweetID(input)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "1234567890123456789" {
		t.Errorf("id: got %v, want %v", id, "1234567890123456789")
	}
}

func TestExtractTweetID_StatusURLVariants_IgnoresTrailingParts(t *testing.T) {
	// Arrange
	testCases := []struct {
		name  string
		input string
	}{
		{"query string", "https://x.com/user/status/1234567890123456789?s=20&t=abc"},
		{"photo suffix", "https://twitter.com/user/status/1234567890123456789/photo/1"},
		{"fragment", "https://x.com/user/status/1234567890123456789#reply"},
		{"mobile host", "https://mobile.twitter.com/user/status/1234567890123456789"},
		{"no scheme", "x.com/user/status/1234567890123456789"},
		{"surrounding spaces", "  https://x.com/user/status/1234567890123456789  "},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			id, err := domain.ExtractTweetID(tc.input)

			// Assert
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != "1234567890123456789" {
				t.Errorf("id: got %v, want %v", id, "1234567890123456789")
			}
		})
	}
}

func TestExtractTweetID_NoStatusSegment_FallsBackToLastComponent(t *testing.T) {
	// Arrange
	testCases := []struct {
		name     string
		input    string
		expected domain.TweetID
	}{
		{"user prefix", "user/1234567890123456789", "1234567890123456789"},
		{"bare id", "1234567890123456789", "1234567890123456789"},
		{"trailing slash", "user/1234567890123456789/", "1234567890123456789"},
		{"short legacy id", "https://twitter.com/jack/status/20", "20"},
		{"url with query", "https://example.com/t/98765?ref=home", "98765"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			id, err := domain.ExtractTweetID(tc.input)

			// Assert
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tc.expected {
				t.Errorf("id: got %v, want %v", id, tc.expected)
			}
		})
	}
}

func TestExtractTweetID_InvalidInput_ReturnsInvalidIdentifier(t *testing.T) {
	// Arrange
	testCases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"only slashes", "///"},
		{"profile url", "https://x.com/elonmusk"},
		{"non numeric tail", "user/status/abc"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			_, err := domain.ExtractTweetID(tc.input)

			// Assert
			if !errors.Is(err, domain.ErrInvalidIdentifier) {
				t.Errorf("error: got %v, want %v", err, domain.ErrInvalidIdentifier)
			}
		})
	}
}
