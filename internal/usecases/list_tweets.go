package usecases

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"xdownloader/internal/domain"
	"xdownloader/pkg/log"
)

// Lister returns one listing of at most limit items.
type Lister interface {
	List(ctx context.Context, kind domain.ListingKind, limit int) (domain.Listing, error)
}

// ListingFilter removes hidden items and truncates to limit.
type ListingFilter interface {
	Apply(l domain.Listing, limit int) domain.Listing
}

// ListingCache stores listings by query shape.
type ListingCache interface {
	Get(key string) (domain.Listing, bool)
	Set(key string, l domain.Listing)
}

// overfetch compensates for items the filter drops.
const overfetch = 2

// ListTweetsUseCase serves trending, recent and creator listings, cache first,
// from the listing API with the database as fallback.
type ListTweetsUseCase struct {
	primary  Lister
	fallback Lister
	filter   ListingFilter
	cache    ListingCache
}

// NewListTweetsUseCase creates a new ListTweetsUseCase. primary or fallback
// may be nil, not both.
func NewListTweetsUseCase(primary, fallback Lister, filter ListingFilter, cache ListingCache) *ListTweetsUseCase {
	return &ListTweetsUseCase{
		primary:  primary,
		fallback: fallback,
		filter:   filter,
		cache:    cache,
	}
}

func listingKey(kind domain.ListingKind, limit int) string {
	return fmt.Sprintf("%s:%d", kind, limit)
}

// Execute returns the listing of kind with at most limit items.
func (uc *ListTweetsUseCase) Execute(ctx context.Context, kind domain.ListingKind, limit int) (domain.Listing, error) {
	if _, err := domain.ParseListingKind(string(kind)); err != nil {
		return domain.Listing{}, err
	}

	key := listingKey(kind, limit)
	if uc.cache != nil {
		if l, ok := uc.cache.Get(key); ok {
			log.GlobalDebugCtx(ctx, "listing cache hit", "key", key)
			return l, nil
		}
	}

	l, err := uc.load(ctx, kind, limit)
	if err != nil {
		return domain.Listing{}, err
	}
	return uc.store(key, l, limit), nil
}

// Refresh reloads the listing of kind, bypassing the cache read.
func (uc *ListTweetsUseCase) Refresh(ctx context.Context, kind domain.ListingKind, limit int) error {
	l, err := uc.load(ctx, kind, limit)
	if err != nil {
		return err
	}
	uc.store(listingKey(kind, limit), l, limit)
	return nil
}

// store filters l down to limit items and caches it.
func (uc *ListTweetsUseCase) store(key string, l domain.Listing, limit int) domain.Listing {
	if uc.filter != nil {
		l = uc.filter.Apply(l, limit)
	} else if limit > 0 {
		if len(l.Tweets) > limit {
			l.Tweets = l.Tweets[:limit]
		}
		if len(l.Creators) > limit {
			l.Creators = l.Creators[:limit]
		}
	}
	if uc.cache != nil {
		uc.cache.Set(key, l)
	}
	return l
}

func (uc *ListTweetsUseCase) load(ctx context.Context, kind domain.ListingKind, limit int) (domain.Listing, error) {
	var errs []error
	for _, source := range []Lister{uc.primary, uc.fallback} {
		if source == nil {
			continue
		}
		l, err := source.List(ctx, kind, limit*overfetch)
		if err == nil {
			return l, nil
		}
		if errors.Is(err, domain.ErrUnknownListing) {
			return domain.Listing{}, err
		}
		log.GlobalWarnCtx(ctx, "listing source failed", "kind", kind, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return domain.Listing{}, fmt.Errorf("%w: no source configured", domain.ErrListingUnavailable)
	}
	return domain.Listing{}, fmt.Errorf("%w: %w", domain.ErrListingUnavailable, errors.Join(errs...))
}

// HomeListings is what the home page shows below the form.
type HomeListings struct {
	Creators domain.Listing
	Trending domain.Listing
}

// Home loads creators and trending concurrently. A failed listing is left
// empty rather than failing the page.
func (uc *ListTweetsUseCase) Home(ctx context.Context, limit int) HomeListings {
	var home HomeListings
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l, err := uc.Execute(gctx, domain.ListingCreators, limit)
		if err != nil {
			log.GlobalWarnCtx(ctx, "home creators unavailable", "error", err)
			return nil
		}
		home.Creators = l
		return nil
	})
	g.Go(func() error {
		l, err := uc.Execute(gctx, domain.ListingTrending, limit)
		if err != nil {
			log.GlobalWarnCtx(ctx, "home trending unavailable", "error", err)
			return nil
		}
		home.Trending = l
		return nil
	})
	_ = g.Wait()
	return home
}

// Warm refreshes every listing kind at limit.
func (uc *ListTweetsUseCase) Warm(ctx context.Context, limit int) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range []domain.ListingKind{domain.ListingTrending, domain.ListingRecent, domain.ListingCreators} {
		g.Go(func() error {
			return uc.Refresh(gctx, kind, limit)
		})
	}
	return g.Wait()
}
