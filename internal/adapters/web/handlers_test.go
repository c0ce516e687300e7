package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2"

	"xdownloader/internal/adapters/payload"
	"xdownloader/internal/domain"
	"xdownloader/internal/usecases"
	"xdownloader/test/fixtures"
)

type stubFetcher struct {
	raw payload.Raw
	err error
}

func (s *stubFetcher) FetchTweet(ctx context.Context, id domain.TweetID) (payload.Raw, error) {
	return s.raw, s.err
}

type stubQuota struct {
	n   int64
	err error
}

func (s *stubQuota) Remaining(ctx context.Context) (int64, error) {
	return s.n, s.err
}

type stubLookup struct {
	got domain.TweetID
	raw payload.Raw
	err error
}

func (s *stubLookup) Lookup(ctx context.Context, id domain.TweetID) (payload.Raw, error) {
	s.got = id
	return s.raw, s.err
}

type stubListingSource struct {
	body   []byte
	err    error
	action string
}

func (s *stubListingSource) Raw(ctx context.Context, action string, limit int) ([]byte, error) {
	s.action = action
	return s.body, s.err
}

type stubLister struct {
	listing map[domain.ListingKind]domain.Listing
}

func (s *stubLister) List(ctx context.Context, kind domain.ListingKind, limit int) (domain.Listing, error) {
	return s.listing[kind], nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestApp(deps Dependencies) *fiber.App {
	app := fiber.New()
	app.Use(SessionMiddleware(false))
	SetupRoutes(app, NewHandlers(deps), "")
	return app
}

func fetchDeps(fetcher *stubFetcher, quota *stubQuota) Dependencies {
	return Dependencies{
		Fetch: usecases.NewFetchTweetUseCase(fetcher, payload.NewNormalizer(), usecases.NewRequestTracker(), usecases.NewQuotaTracker(quota)),
		Quota: usecases.NewQuotaTracker(quota),
	}
}

func postFetch(t *testing.T, app *fiber.App, input string) *http.Response {
	t.Helper()
	form := url.Values{"url": {input}}
	req := httptest.NewRequest("POST", "/fetch", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	return resp
}

func parseHTML(t *testing.T, r io.Reader) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestFetchTweet_RendersThreadInOrder(t *testing.T) {
	// Arrange
	app := newTestApp(fetchDeps(&stubFetcher{raw: fixtures.ThreadWithQuote()}, &stubQuota{n: 5}))
	input := "https://x.com/someone/status/" + fixtures.ThreadRootID

	// Act
	resp := postFetch(t, app, input)
	defer resp.Body.Close()
	doc := parseHTML(t, resp.Body)

	// Assert
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	cards := doc.Find("article.tweet-card")
	if cards.Length() != 4 {
		t.Fatalf("cards: got %d, want 4", cards.Length())
	}
	wantTexts := []string{"1/ thread start", "2/ more", "3/ end", "quoted text"}
	cards.Each(func(i int, s *goquery.Selection) {
		if got := s.Find("textarea").Text(); got != wantTexts[i] {
			t.Errorf("card %d text: got %q, want %q", i, got, wantTexts[i])
		}
	})
	if doc.Find("video").Length() != 1 {
		t.Errorf("video elements: got %d, want 1", doc.Find("video").Length())
	}
	if got, _ := doc.Find(".tweet-thread").Attr("data-tweet-id"); got != fixtures.ThreadRootID {
		t.Errorf("data-tweet-id: got %q", got)
	}
	wantURL := "/downloader?url=" + url.QueryEscape(input)
	if got := resp.Header.Get("HX-Replace-Url"); got != wantURL {
		t.Errorf("HX-Replace-Url: got %q, want %q", got, wantURL)
	}
}

func TestFetchTweet_ShowsCharCounterAndGrid(t *testing.T) {
	// Arrange
	app := newTestApp(fetchDeps(&stubFetcher{raw: fixtures.SingleTweet()}, &stubQuota{}))

	// Act
	resp := postFetch(t, app, fixtures.SingleTweetID)
	defer resp.Body.Close()
	doc := parseHTML(t, resp.Body)

	// Assert
	counter := strings.Join(strings.Fields(doc.Find(".char-counter").Text()), " ")
	if counter != "31 / 280" {
		t.Errorf("counter: got %q, want %q", counter, "31 / 280")
	}
	if !doc.Find(".media-grid").HasClass("media-grid-2") {
		t.Error("two photos should use the two-item grid")
	}
	if doc.Find(".media-item img").Length() != 2 {
		t.Errorf("images: got %d, want 2", doc.Find(".media-item img").Length())
	}
}

func TestFetchTweet_ErrorsRenderExplicitMessage(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		fetcher *stubFetcher
		want    string
	}{
		{
			name:    "invalid url",
			input:   "https://x.com/someone",
			fetcher: &stubFetcher{raw: fixtures.SingleTweet()},
			want:    "doesn't look like a tweet URL",
		},
		{
			name:    "upstream exhausted",
			input:   fixtures.SingleTweetID,
			fetcher: &stubFetcher{err: domain.NewFetchError(fixtures.SingleTweetID, 4, domain.ErrUpstreamUnavailable)},
			want:    "Unable to load this tweet",
		},
		{
			name:    "malformed payload",
			input:   fixtures.SingleTweetID,
			fetcher: &stubFetcher{raw: fixtures.MissingRoot()},
			want:    "couldn't be loaded",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			app := newTestApp(fetchDeps(tc.fetcher, &stubQuota{}))

			// Act
			resp := postFetch(t, app, tc.input)
			defer resp.Body.Close()
			doc := parseHTML(t, resp.Body)

			// Assert
			msg := doc.Find(".error-message").Text()
			if !strings.Contains(msg, tc.want) {
				t.Errorf("message: got %q, want it to contain %q", msg, tc.want)
			}
			if doc.Find("article.tweet-card").Length() != 0 {
				t.Error("no cards expected on failure")
			}
		})
	}
}

func TestFetchTweet_RateLimited(t *testing.T) {
	// Arrange
	deps := fetchDeps(&stubFetcher{raw: fixtures.SingleTweet()}, &stubQuota{})
	deps.Limiter = NewRateLimiter(1, time.Minute)
	defer deps.Limiter.Close()
	app := newTestApp(deps)

	// Act
	first := postFetch(t, app, fixtures.SingleTweetID)
	first.Body.Close()
	second := postFetch(t, app, fixtures.SingleTweetID)
	defer second.Body.Close()
	doc := parseHTML(t, second.Body)

	// Assert
	if !strings.Contains(doc.Find(".error-message").Text(), "Too many requests") {
		t.Errorf("second fetch should be rate limited, got %q", doc.Text())
	}
}

func TestAPIGetTweet_ReturnsPresentedViews(t *testing.T) {
	// Arrange
	app := newTestApp(fetchDeps(&stubFetcher{raw: fixtures.SingleTweet()}, &stubQuota{}))
	req := httptest.NewRequest("GET", "/api/tweet?url="+url.QueryEscape("https://twitter.com/a/status/"+fixtures.SingleTweetID), nil)

	// Act
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Success bool   `json:"success"`
		TweetID string `json:"tweet_id"`
		Tweets  []struct {
			Name       string   `json:"name"`
			ScreenName string   `json:"screen_name"`
			Text       string   `json:"tweet_text"`
			Media      []string `json:"tweet_media"`
			MediaInfo  []struct {
				URL  string `json:"url"`
				Type string `json:"type"`
			} `json:"medias_info"`
		} `json:"tweets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Assert
	if !body.Success || body.TweetID != fixtures.SingleTweetID {
		t.Fatalf("body: %+v", body)
	}
	if len(body.Tweets) != 1 {
		t.Fatalf("tweets: got %d, want 1", len(body.Tweets))
	}
	view := body.Tweets[0]
	if view.Name != "name" || view.ScreenName != "screen_name" {
		t.Errorf("placeholder identity: got %q/%q", view.Name, view.ScreenName)
	}
	if len(view.Media) != 2 || len(view.MediaInfo) != 2 || view.MediaInfo[0].Type != "image" {
		t.Errorf("media: %+v / %+v", view.Media, view.MediaInfo)
	}
}

func TestAPIGetTweet_InvalidInput_Returns400(t *testing.T) {
	// Arrange
	app := newTestApp(fetchDeps(&stubFetcher{}, &stubQuota{}))

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/api/tweet?url=hello", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	// Assert
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestDownloader_PrefillsAndAutoloads(t *testing.T) {
	// Arrange
	app := newTestApp(fetchDeps(&stubFetcher{}, &stubQuota{}))
	shared := "https://x.com/u/status/" + fixtures.SingleTweetID

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/downloader?url="+url.QueryEscape(shared), nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	doc := parseHTML(t, resp.Body)

	// Assert
	if got, _ := doc.Find(`input[name="url"]`).Attr("value"); got != shared {
		t.Errorf("prefill: got %q, want %q", got, shared)
	}
	if trigger, _ := doc.Find("#fetch-form").Attr("hx-trigger"); !strings.Contains(trigger, "load") {
		t.Errorf("hx-trigger: got %q, want load", trigger)
	}
}

func TestDownloader_EscapesPrefill(t *testing.T) {
	// Arrange
	app := newTestApp(fetchDeps(&stubFetcher{}, &stubQuota{}))
	hostile := `"><script>alert(1)</script>`

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/downloader?url="+url.QueryEscape(hostile), nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	doc := parseHTML(t, resp.Body)

	// Assert
	if doc.Find("main script").Length() != 0 {
		t.Error("prefill must be escaped")
	}
}

func TestHome_RendersListingsWhenEnabled(t *testing.T) {
	// Arrange
	deps := fetchDeps(&stubFetcher{}, &stubQuota{})
	lister := &stubLister{listing: map[domain.ListingKind]domain.Listing{
		domain.ListingCreators: {Kind: domain.ListingCreators, Creators: []domain.Creator{{ScreenName: "jack", Name: "Jack", TweetCount: 3, TotalViews: 900}}},
		domain.ListingTrending: {Kind: domain.ListingTrending, Tweets: []domain.ListedTweet{{TweetID: "20", ScreenName: "jack", Text: "just setting up"}}},
	}}
	deps.Listings = usecases.NewListTweetsUseCase(lister, nil, nil, nil)
	app := newTestApp(deps)

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	doc := parseHTML(t, resp.Body)

	// Assert
	if doc.Find("li.creator").Length() != 1 {
		t.Errorf("creators: got %d, want 1", doc.Find("li.creator").Length())
	}
	href, _ := doc.Find("li.listed-tweet a").Attr("href")
	if !strings.HasPrefix(href, "/downloader?url=") {
		t.Errorf("trending link: got %q", href)
	}
	if doc.Find("#fetch-form").Length() != 1 {
		t.Error("home should render the form")
	}
}

func TestRequestX_Passthrough(t *testing.T) {
	// Arrange
	lookup := &stubLookup{raw: payload.Raw(`{"threaded_conversation_with_injections_v2":{}}`)}
	deps := fetchDeps(&stubFetcher{}, &stubQuota{})
	deps.Lookup = lookup
	app := newTestApp(deps)

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/api/requestx?tweet_id="+fixtures.SingleTweetID, nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Assert
	if lookup.got != fixtures.SingleTweetID {
		t.Errorf("lookup id: got %q", lookup.got)
	}
	if string(body["message"]) != `"from shared database"` {
		t.Errorf("message: got %s", body["message"])
	}
	if !strings.Contains(string(body["data"]), "threaded_conversation_with_injections_v2") {
		t.Errorf("data not passed through: %s", body["data"])
	}
}

func TestRequestX_MissingID_Returns400(t *testing.T) {
	// Arrange
	deps := fetchDeps(&stubFetcher{}, &stubQuota{})
	deps.Lookup = &stubLookup{}
	app := newTestApp(deps)

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/api/requestx", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	// Assert
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestRequestX_UpstreamRejected_PassesThrough(t *testing.T) {
	// Arrange
	deps := fetchDeps(&stubFetcher{}, &stubQuota{})
	deps.Lookup = &stubLookup{err: fmt.Errorf("%w: %s", domain.ErrUpstreamRejected, "Tweet not found")}
	app := newTestApp(deps)

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/api/requestx?tweet_id="+fixtures.SingleTweetID, nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Assert
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if body["success"] != false || body["message"] != passthroughMessage {
		t.Errorf("body: got %v", body)
	}
	if body["error"] != friendlyError(domain.ErrUpstreamRejected) {
		t.Errorf("error: got %v", body["error"])
	}
}

func TestRequestX_TransportFailure_HidesInternals(t *testing.T) {
	// Arrange
	deps := fetchDeps(&stubFetcher{}, &stubQuota{})
	deps.Lookup = &stubLookup{err: fmt.Errorf("%w: dial tcp 10.0.0.7:443: connection refused", domain.ErrUpstreamUnavailable)}
	app := newTestApp(deps)

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/api/requestx?tweet_id="+fixtures.SingleTweetID, nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	// Assert
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Errorf("status: got %d, want 502", resp.StatusCode)
	}
	if strings.Contains(string(raw), "10.0.0.7") || strings.Contains(string(raw), "dial tcp") {
		t.Errorf("body leaks transport detail: %s", raw)
	}
}

func TestRequestDB_MergesMessage(t *testing.T) {
	// Arrange
	source := &stubListingSource{body: []byte(`{"success":true,"data":[{"tweet_id":"20"}]}`)}
	deps := fetchDeps(&stubFetcher{}, &stubQuota{})
	deps.ListingAPI = source
	app := newTestApp(deps)

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/api/requestdb?action=trending", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Assert
	if source.action != "trending" {
		t.Errorf("action: got %q", source.action)
	}
	if string(body["success"]) != "true" || body["data"] == nil {
		t.Errorf("body not passed through: %v", body)
	}
	if string(body["message"]) != `"from shared database"` {
		t.Errorf("message: got %s", body["message"])
	}
}

func TestRequestDB_NonObjectBody_Returns502(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"null", `null`},
		{"array", `[1,2]`},
		{"string", `"ok"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			deps := fetchDeps(&stubFetcher{}, &stubQuota{})
			deps.ListingAPI = &stubListingSource{body: []byte(tt.body)}
			app := newTestApp(deps)

			// Act
			resp, err := app.Test(httptest.NewRequest("GET", "/api/requestdb?action=trending", nil))
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()
			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}

			// Assert
			if resp.StatusCode != fiber.StatusBadGateway {
				t.Errorf("status: got %d, want 502", resp.StatusCode)
			}
			if body["error"] != friendlyError(domain.ErrListingUnavailable) {
				t.Errorf("error: got %v", body["error"])
			}
		})
	}
}

func TestRequestDB_NotConfigured_Returns503(t *testing.T) {
	// Arrange
	app := newTestApp(fetchDeps(&stubFetcher{}, &stubQuota{}))

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/api/requestdb?action=recent", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	// Assert
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

func TestRemains_RefreshesAndFallsBack(t *testing.T) {
	// Arrange
	quota := &stubQuota{n: 12}
	app := newTestApp(fetchDeps(&stubFetcher{}, quota))
	read := func() string {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/remains", nil))
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return string(b)
	}

	// Act
	fresh := read()
	quota.n, quota.err = 0, errors.New("down")
	stale := read()

	// Assert
	if fresh != `{"data":12}` {
		t.Errorf("fresh: got %s", fresh)
	}
	if stale != `{"data":12}` {
		t.Errorf("stale fallback: got %s", stale)
	}
}

func TestHealth_ReportsFailingDependency(t *testing.T) {
	// Arrange
	deps := fetchDeps(&stubFetcher{}, &stubQuota{})
	deps.Health = map[string]HealthChecker{
		"db": pingFunc(func(ctx context.Context) error { return errors.New("closed") }),
	}
	app := newTestApp(deps)

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	// Assert
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidIdentifier, fiber.StatusBadRequest},
		{domain.ErrRateLimited, fiber.StatusTooManyRequests},
		{domain.NewFetchError("1", 4, domain.ErrUpstreamRejected), fiber.StatusBadGateway},
		{domain.ErrMalformedPayload, fiber.StatusBadGateway},
		{domain.ErrSuperseded, fiber.StatusConflict},
		{domain.ErrListingUnavailable, fiber.StatusServiceUnavailable},
		{context.DeadlineExceeded, fiber.StatusGatewayTimeout},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range testCases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v): got %d, want %d", tc.err, got, tc.want)
		}
	}
}
