package listing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"xdownloader/internal/domain"
)

func TestHiddenFilter_HidesAccountsAndKeywords(t *testing.T) {
	// Arrange
	f := NewHiddenFilter([]string{"@Spammer", " bot "}, []string{"Giveaway"})
	l := domain.Listing{
		Kind: domain.ListingTrending,
		Tweets: []domain.ListedTweet{
			{TweetID: "1", ScreenName: "spammer", Text: "hello"},
			{TweetID: "2", ScreenName: "alice", Text: "huge GIVEAWAY today"},
			{TweetID: "3", ScreenName: "alice", Text: "normal"},
			{TweetID: "4", ScreenName: "BOT", Text: "beep"},
			{TweetID: "5", ScreenName: "carol", Text: "also normal"},
		},
	}

	// Act
	out := f.Apply(l, 10)

	// Assert
	if len(out.Tweets) != 2 || out.Tweets[0].TweetID != "3" || out.Tweets[1].TweetID != "5" {
		t.Errorf("tweets: got %+v", out.Tweets)
	}
	if out.Kind != domain.ListingTrending {
		t.Errorf("kind: got %v", out.Kind)
	}
}

func TestHiddenFilter_Apply_TruncatesAfterFiltering(t *testing.T) {
	// Arrange
	f := NewHiddenFilter([]string{"spammer"}, nil)
	l := domain.Listing{Creators: []domain.Creator{
		{ScreenName: "spammer"}, {ScreenName: "a"}, {ScreenName: "b"}, {ScreenName: "c"},
	}}

	// Act
	out := f.Apply(l, 2)

	// Assert
	if len(out.Creators) != 2 || out.Creators[0].ScreenName != "a" || out.Creators[1].ScreenName != "b" {
		t.Errorf("creators: got %+v", out.Creators)
	}
}

func TestLoadHiddenFilter_EmptyPath_HidesNothing(t *testing.T) {
	// Act
	f, err := LoadHiddenFilter("")

	// Assert
	if err != nil {
		t.Fatalf("LoadHiddenFilter: %v", err)
	}
	if f.HidesAccount("anyone") || f.HidesText("anything") {
		t.Error("empty filter should hide nothing")
	}
	if reloaded, err := f.ReloadIfChanged(); reloaded || err != nil {
		t.Errorf("ReloadIfChanged: got %v, %v", reloaded, err)
	}
}

func TestHiddenFilter_ReloadIfChanged(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "hidden.yaml")
	if err := os.WriteFile(path, []byte("accounts: [alice]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := LoadHiddenFilter(path)
	if err != nil {
		t.Fatalf("LoadHiddenFilter: %v", err)
	}

	// Act - unchanged file
	reloaded, err := f.ReloadIfChanged()

	// Assert
	if err != nil || reloaded {
		t.Errorf("unchanged file: got %v, %v", reloaded, err)
	}
	if !f.HidesAccount("alice") {
		t.Error("alice should be hidden")
	}

	// Act - rewrite with a later mtime
	if err := os.WriteFile(path, []byte("accounts: [bob]\nkeywords: [nsfw]\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	reloaded, err = f.ReloadIfChanged()

	// Assert
	if err != nil || !reloaded {
		t.Fatalf("changed file: got %v, %v", reloaded, err)
	}
	if f.HidesAccount("alice") || !f.HidesAccount("bob") || !f.HidesText("NSFW content") {
		t.Error("filter did not pick up the new file")
	}
}

func TestLoadHiddenFilter_MissingFile(t *testing.T) {
	// Act
	_, err := LoadHiddenFilter(filepath.Join(t.TempDir(), "missing.yaml"))

	// Assert
	if err == nil {
		t.Error("expected error for missing file")
	}
}
