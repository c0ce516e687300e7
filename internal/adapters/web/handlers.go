package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"xdownloader/internal/adapters/payload"
	"xdownloader/internal/adapters/presenter"
	"xdownloader/internal/domain"
	"xdownloader/internal/usecases"
	"xdownloader/pkg/log"
	"xdownloader/templates/components"
	"xdownloader/templates/pages"
	"xdownloader/templates/partials"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// passthroughMessage tags answers served straight from the shared services.
const passthroughMessage = "from shared database"

// TweetLookup is a single upstream lookup without retries.
type TweetLookup interface {
	Lookup(ctx context.Context, id domain.TweetID) (payload.Raw, error)
}

// ListingSource returns the listing API answer unparsed.
type ListingSource interface {
	Raw(ctx context.Context, action string, limit int) ([]byte, error)
}

// HealthChecker is a dependency /healthz pings.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies wires the handlers. Listings, Lookup, ListingAPI and Health
// are optional.
type Dependencies struct {
	Fetch        *usecases.FetchTweetUseCase
	Quota        *usecases.QuotaTracker
	Listings     *usecases.ListTweetsUseCase
	Lookup       TweetLookup
	ListingAPI   ListingSource
	Health       map[string]HealthChecker
	Limiter      *RateLimiter
	Timeout      time.Duration
	ListingLimit int
}

// Handlers contains the HTTP handlers for the web application.
type Handlers struct {
	deps Dependencies
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Dependencies) *Handlers {
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}
	if deps.ListingLimit <= 0 {
		deps.ListingLimit = 20
	}
	return &Handlers{deps: deps}
}

// render is a helper to render templ components.
func render(c *fiber.Ctx, component templ.Component) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	return adaptor.HTTPHandler(templ.Handler(component))(c)
}

func (h *Handlers) withTimeout(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.deps.Timeout)
}

// Home renders the landing page with URL input and, when enabled, the
// creator and trending listings.
func (h *Handlers) Home(c *fiber.Ctx) error {
	remaining, known := h.deps.Quota.Remaining()
	data := pages.HomeData{
		Remaining:      remaining,
		RemainingKnown: known,
		ListingEnabled: h.deps.Listings != nil,
	}
	if h.deps.Listings != nil {
		ctx, cancel := h.withTimeout(c)
		defer cancel()
		data.Listings = h.deps.Listings.Home(ctx, h.deps.ListingLimit)
	}
	return render(c, pages.Home(data))
}

// Downloader renders the shareable page. Without ?url= it prefills the last
// tweet requested in this session.
func (h *Handlers) Downloader(c *fiber.Ctx) error {
	prefill := c.Query("url")
	if prefill == "" {
		if id, ok := h.deps.Fetch.Latest(SessionID(c)); ok {
			prefill = "https://x.com/i/status/" + id.String()
		}
	}
	remaining, known := h.deps.Quota.Remaining()
	return render(c, pages.Downloader(prefill, remaining, known))
}

// FetchTweet handles the HTMX form post and renders the thread partial.
func (h *Handlers) FetchTweet(c *fiber.Ctx) error {
	input := c.FormValue("url")

	result, err := h.fetch(c, input)
	if errors.Is(err, domain.ErrSuperseded) {
		// A newer submission owns the result area.
		return c.SendStatus(fiber.StatusNoContent)
	}

	c.Set("HX-Replace-Url", "/downloader?url="+url.QueryEscape(input))
	if err != nil {
		return render(c, components.ErrorMessage(friendlyError(err)))
	}
	return render(c, partials.TweetThread(result.TweetID, presenter.Present(result.Units)))
}

// APIGetTweet returns the presented thread as JSON.
func (h *Handlers) APIGetTweet(c *fiber.Ctx) error {
	result, err := h.fetch(c, c.Query("url"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"success": false,
			"error":   friendlyError(err),
		})
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"tweet_id": result.TweetID,
		"tweets":   presenter.Present(result.Units),
	})
}

func (h *Handlers) fetch(c *fiber.Ctx, input string) (*usecases.FetchResult, error) {
	if !h.deps.Limiter.Allow(c.IP()) {
		log.GlobalWarnCtx(c.UserContext(), "fetch rate limited", "ip", c.IP())
		return nil, domain.ErrRateLimited
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	result, err := h.deps.Fetch.Execute(ctx, SessionID(c), input)
	if err != nil && !errors.Is(err, domain.ErrSuperseded) {
		log.GlobalErrorCtx(ctx, "fetch tweet failed", "input", input, "error", err)
	}
	return result, err
}

// RequestX proxies one upstream lookup.
func (h *Handlers) RequestX(c *fiber.Ctx) error {
	raw := c.Query("tweet_id")
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "tweet_id is required",
		})
	}
	id, err := domain.ExtractTweetID(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   friendlyError(err),
		})
	}
	if h.deps.Lookup == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "error": "lookup is not configured"})
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	data, err := h.deps.Lookup.Lookup(ctx, id)
	if err != nil {
		log.GlobalErrorCtx(ctx, "requestx failed", "tweet_id", id, "error", err)
		if errors.Is(err, domain.ErrUpstreamRejected) {
			// A rejection is a valid upstream answer and passes through as such.
			return c.JSON(fiber.Map{
				"success": false,
				"error":   friendlyError(err),
				"message": passthroughMessage,
			})
		}
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"success": false,
			"error":   friendlyError(err),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    json.RawMessage(data),
		"message": passthroughMessage,
	})
}

// RequestDB proxies the listing API.
func (h *Handlers) RequestDB(c *fiber.Ctx) error {
	if h.deps.ListingAPI == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   friendlyError(domain.ErrListingUnavailable),
		})
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	body, err := h.deps.ListingAPI.Raw(ctx, c.Query("action"), c.QueryInt("limit", 0))
	if err != nil {
		log.GlobalErrorCtx(ctx, "requestdb failed", "action", c.Query("action"), "error", err)
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"success": false,
			"error":   friendlyError(err),
		})
	}

	var answer map[string]json.RawMessage
	if err := json.Unmarshal(body, &answer); err != nil || answer == nil {
		log.GlobalErrorCtx(ctx, "requestdb answer is not an object", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   friendlyError(domain.ErrListingUnavailable),
		})
	}
	if _, ok := answer["message"]; !ok {
		answer["message"], _ = json.Marshal(passthroughMessage)
	}
	return c.JSON(answer)
}

// Remains refreshes and returns the upstream quota. The last known value is
// served when the refresh fails.
func (h *Handlers) Remains(c *fiber.Ctx) error {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	n, err := h.deps.Quota.Refresh(ctx)
	if err != nil {
		last, known := h.deps.Quota.Remaining()
		if !known {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"data": nil, "error": err.Error()})
		}
		n = last
	}
	return c.JSON(fiber.Map{"data": n})
}

// Health pings every configured dependency.
func (h *Handlers) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{}
	status := fiber.StatusOK
	for name, checker := range h.deps.Health {
		if err := checker.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": checks})
}

// NotFound renders the error page for unknown routes.
func (h *Handlers) NotFound(c *fiber.Ctx) error {
	c.Status(fiber.StatusNotFound)
	return render(c, pages.Error("This page doesn't exist."))
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier), errors.Is(err, domain.ErrUnknownListing):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, domain.ErrSuperseded):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrListingUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, domain.ErrUpstreamUnavailable),
		errors.Is(err, domain.ErrUpstreamRejected),
		errors.Is(err, domain.ErrMalformedPayload):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// friendlyError returns a neutral, non-blaming error message.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier):
		return "That doesn't look like a tweet URL. Try pasting a link from twitter.com or x.com"
	case errors.Is(err, domain.ErrRateLimited):
		return "Too many requests. Please wait a moment and try again."
	case errors.Is(err, domain.ErrUpstreamRejected):
		return "This tweet couldn't be found. It might be private or no longer available."
	case errors.Is(err, domain.ErrMalformedPayload):
		return "This tweet couldn't be loaded. It might not be publicly available."
	case errors.Is(err, domain.ErrSuperseded):
		return "A newer request replaced this one."
	case errors.Is(err, domain.ErrListingUnavailable):
		return "Listings are unavailable right now."
	case errors.Is(err, domain.ErrUnknownListing):
		return "Unknown listing."
	default:
		return "Unable to load this tweet right now. Please try again in a moment."
	}
}
