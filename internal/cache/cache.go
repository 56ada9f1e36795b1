package cache

import (
	"context"
	"errors"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

// OrderCache is a read-through cache of order aggregates.
//
// Version returns the current invalidation token of an order. Set stores the
// aggregate only while that token is still current, and Delete replaces it.
// A reader that took its token before a write therefore cannot put the
// pre-write aggregate back after the write's Delete.
type OrderCache interface {
	Get(ctx context.Context, orderID string) (*d.Aggregate, error)
	Version(ctx context.Context, orderID string) (string, error)
	Set(ctx context.Context, agg *d.Aggregate, version string) error
	Delete(ctx context.Context, orderID string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleEntry is returned by Set when the order was invalidated after
	// the caller read its version.
	ErrStaleEntry = errors.New("cache entry invalidated since version was read")
)

// NopCache misses on every read. It stands in when no redis is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*d.Aggregate, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Version(context.Context, string) (string, error) {
	return "", nil
}

func (NopCache) Set(context.Context, *d.Aggregate, string) error {
	return nil
}

func (NopCache) Delete(context.Context, string) error {
	return nil
}
