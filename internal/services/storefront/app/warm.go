package app

import (
	"context"
	"fmt"

	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/services/storefront/chat"
	"github.com/louisbranch/storefront/internal/services/storefront/keys"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
	"golang.org/x/sync/errgroup"
)

// Warm fetches the catalog and, when signed in, the shopper's orders,
// wishlist and conversations concurrently. It fails with the first error.
func (c *Client) Warm(ctx context.Context) error {
	type warmup struct {
		key     querycache.Key
		fetcher querycache.Fetcher
	}
	jobs := []warmup{{key: keys.ProductList(nil), fetcher: c.productsFetcher(nil)}}
	if user, ok := c.signedIn(); ok {
		jobs = append(jobs,
			warmup{key: keys.Orders(user.ID), fetcher: c.ordersFetcher()},
			warmup{key: keys.WishlistItems(user.ID), fetcher: c.wishlistFetcher()},
			warmup{key: keys.Conversations(user.ID), fetcher: chat.ConversationsFetcher(c.remote)},
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if _, err := c.cache.Fetch(ctx, job.key, job.fetcher); err != nil {
				return fmt.Errorf("warm %s: %w", job.key, remote.Classify(err))
			}
			return nil
		})
	}
	return g.Wait()
}
