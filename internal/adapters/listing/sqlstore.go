package listing

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"xdownloader/internal/domain"
	"xdownloader/pkg/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLStore reads listings straight from the tweets table. It is the fallback
// when the listing API is down, and the only source when no API is configured.
type SQLStore struct {
	db       *sql.DB
	postgres bool
	window   time.Duration
	now      func() time.Time
}

// OpenSQLStore opens dsn, applies migrations and returns the store.
// postgres:// and postgresql:// DSNs use lib/pq; anything else is a SQLite path.
func OpenSQLStore(ctx context.Context, dsn string, window time.Duration) (*SQLStore, error) {
	driver, dialect, postgres := "sqlite", goose.DialectSQLite3, false
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, dialect, postgres = "postgres", goose.DialectPostgres, true
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if !postgres {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	log.GlobalInfoCtx(ctx, "listing store ready", "driver", driver)
	return &SQLStore{db: db, postgres: postgres, window: window, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, r := range results {
		log.GlobalInfoCtx(ctx, "migration applied", "version", r.Source.Version, "duration", r.Duration.String())
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// List implements Lister.
func (s *SQLStore) List(ctx context.Context, kind domain.ListingKind, limit int) (domain.Listing, error) {
	if limit <= 0 {
		limit = 20
	}

	switch kind {
	case domain.ListingTrending:
		since := s.now().Add(-s.window).Unix()
		tweets, err := s.queryTweets(ctx, `SELECT tweet_id, screen_name, name, profile_image, tweet_text, media_urls, views, created_at
			FROM tweets WHERE created_at >= ? ORDER BY views DESC, created_at DESC LIMIT ?`, since, limit)
		return domain.Listing{Kind: kind, Tweets: tweets}, err
	case domain.ListingRecent:
		tweets, err := s.queryTweets(ctx, `SELECT tweet_id, screen_name, name, profile_image, tweet_text, media_urls, views, created_at
			FROM tweets ORDER BY created_at DESC LIMIT ?`, limit)
		return domain.Listing{Kind: kind, Tweets: tweets}, err
	case domain.ListingCreators:
		creators, err := s.queryCreators(ctx, limit)
		return domain.Listing{Kind: kind, Creators: creators}, err
	default:
		return domain.Listing{}, domain.ErrUnknownListing
	}
}

func (s *SQLStore) queryTweets(ctx context.Context, query string, args ...any) ([]domain.ListedTweet, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrListingUnavailable, err)
	}
	defer rows.Close()

	var tweets []domain.ListedTweet
	for rows.Next() {
		var (
			t         domain.ListedTweet
			mediaJSON string
			created   int64
		)
		if err := rows.Scan(&t.TweetID, &t.ScreenName, &t.Name, &t.ProfileImage, &t.Text, &mediaJSON, &t.Views, &created); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domain.ErrListingUnavailable, err)
		}
		if err := json.Unmarshal([]byte(mediaJSON), &t.MediaURLs); err != nil {
			log.GlobalWarnCtx(ctx, "listing media column is not a json array", "tweet_id", t.TweetID, "error", err)
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrListingUnavailable, err)
	}
	return tweets, nil
}

func (s *SQLStore) queryCreators(ctx context.Context, limit int) ([]domain.Creator, error) {
	query := `SELECT screen_name, MAX(name), MAX(profile_image), COUNT(*), COALESCE(SUM(views), 0)
		FROM tweets GROUP BY screen_name ORDER BY COALESCE(SUM(views), 0) DESC, screen_name ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrListingUnavailable, err)
	}
	defer rows.Close()

	var creators []domain.Creator
	for rows.Next() {
		var c domain.Creator
		if err := rows.Scan(&c.ScreenName, &c.Name, &c.ProfileImage, &c.TweetCount, &c.TotalViews); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domain.ErrListingUnavailable, err)
		}
		creators = append(creators, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrListingUnavailable, err)
	}
	return creators, nil
}

// rebind turns ? placeholders into $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
