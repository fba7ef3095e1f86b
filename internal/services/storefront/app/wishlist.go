package app

import (
	"context"
	"net/url"

	"github.com/louisbranch/storefront/internal/platform/identity"
	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/services/storefront/cart"
	"github.com/louisbranch/storefront/internal/services/storefront/keys"
	"github.com/louisbranch/storefront/internal/services/storefront/mutation"
	"github.com/louisbranch/storefront/internal/services/storefront/notify"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
)

const wishlistPath = "/wishlist"

type membership struct {
	Wishlisted bool `json:"wishlisted"`
}

func wishlistItemPath(productID string) string {
	return wishlistPath + "/" + url.PathEscape(productID)
}

func (c *Client) wishlistFetcher() querycache.Fetcher {
	return func(ctx context.Context, _ querycache.Key) (any, error) {
		return remote.GetJSON[[]cart.Product](ctx, c.remote, wishlistPath)
	}
}

func (c *Client) membershipFetcher(productID string) querycache.Fetcher {
	return func(ctx context.Context, _ querycache.Key) (any, error) {
		m, err := remote.GetJSON[membership](ctx, c.remote, wishlistItemPath(productID))
		if err != nil {
			return nil, err
		}
		return m.Wishlisted, nil
	}
}

// Wishlist returns the wishlisted products of the signed-in shopper.
func (c *Client) Wishlist() ([]cart.Product, querycache.Entry) {
	user, ok := c.signedIn()
	if !ok {
		return nil, querycache.Entry{}
	}
	entry := c.cache.Read(keys.WishlistItems(user.ID), c.wishlistFetcher(), querycache.Policy{})
	products, _ := querycache.Value[[]cart.Product](entry)
	return products, entry
}

// LoadWishlist waits for a fresh wishlist.
func (c *Client) LoadWishlist(ctx context.Context) ([]cart.Product, error) {
	user, err := c.requireUser("see your wishlist")
	if err != nil {
		return nil, err
	}
	entry, err := c.cache.Fetch(ctx, keys.WishlistItems(user.ID), c.wishlistFetcher())
	if err != nil {
		return nil, remote.Classify(err)
	}
	products, _ := querycache.Value[[]cart.Product](entry)
	return products, nil
}

// IsWishlisted reports whether productID is in the shopper's wishlist.
func (c *Client) IsWishlisted(productID string) (bool, querycache.Entry) {
	user, ok := c.signedIn()
	if !ok {
		return false, querycache.Entry{}
	}
	entry := c.cache.Read(keys.WishlistMember(user.ID, productID), c.membershipFetcher(productID), querycache.Policy{})
	wishlisted, _ := querycache.Value[bool](entry)
	return wishlisted, entry
}

// ToggleWishlist flips the membership of productID optimistically. Only one
// toggle per product may be pending; it returns the flag it is moving to.
func (c *Client) ToggleWishlist(ctx context.Context, productID string) (bool, *mutation.Mutation, error) {
	user, err := c.requireUser("save to your wishlist")
	if err != nil {
		return false, nil, err
	}
	productID, err = requireID("product id", productID)
	if err != nil {
		return false, nil, c.reject(err)
	}

	memberKey := keys.WishlistMember(user.ID, productID)
	itemsKey := keys.WishlistItems(user.ID)
	target := !c.knownMembership(user, productID)
	name := c.productName(user, productID)

	event := notify.EventWishlistRemoved
	if target {
		event = notify.EventWishlistAdded
	}
	toast := notify.Success(event, map[string]string{"Product": name})

	m, err := c.pipeline.Run(ctx, mutation.Request{
		Name:            "toggle wishlist",
		Lane:            "wishlist/" + productID,
		RequireIdentity: true,
		TargetKeys:      []querycache.Key{memberKey, itemsKey},
		Patch: func(key querycache.Key, current any, ok bool) (any, bool) {
			if key == memberKey {
				return target, true
			}
			products, isList := current.([]cart.Product)
			if !ok || !isList || target {
				return nil, false
			}
			return withoutProduct(products, productID), true
		},
		Remote: func(ctx context.Context) (any, error) {
			var (
				payload remote.Payload
				err     error
			)
			if target {
				payload, err = c.remote.Put(ctx, wishlistItemPath(productID), nil)
			} else {
				payload, err = c.remote.Delete(ctx, wishlistItemPath(productID))
			}
			if err != nil {
				return nil, err
			}
			confirmed := membership{Wishlisted: target}
			if err := payload.Decode(&confirmed); err != nil {
				return nil, err
			}
			return confirmed.Wishlisted, nil
		},
		OnConfirm: func(_ context.Context, result any) {
			if wishlisted, ok := result.(bool); ok {
				c.cache.Write(memberKey, wishlisted)
			}
		},
		Invalidate:   []querycache.Key{keys.Wishlist()},
		SuccessToast: &toast,
	})
	if err != nil {
		return false, nil, err
	}
	return target, m, nil
}

// knownMembership answers from the cache only: the membership flag, then the
// wishlist itself, else not wishlisted.
func (c *Client) knownMembership(user identity.User, productID string) bool {
	if entry, ok := c.cache.Peek(keys.WishlistMember(user.ID, productID)); ok {
		if wishlisted, ok := querycache.Value[bool](entry); ok {
			return wishlisted
		}
	}
	if entry, ok := c.cache.Peek(keys.WishlistItems(user.ID)); ok {
		if products, ok := querycache.Value[[]cart.Product](entry); ok {
			for _, product := range products {
				if product.ID == productID {
					return true
				}
			}
		}
	}
	return false
}

func (c *Client) productName(user identity.User, productID string) string {
	if entry, ok := c.cache.Peek(keys.ProductDetail(productID)); ok {
		if product, ok := querycache.Value[cart.Product](entry); ok && product.Name != "" {
			return product.Name
		}
	}
	if entry, ok := c.cache.Peek(keys.WishlistItems(user.ID)); ok {
		if products, ok := querycache.Value[[]cart.Product](entry); ok {
			for _, product := range products {
				if product.ID == productID && product.Name != "" {
					return product.Name
				}
			}
		}
	}
	return productID
}

func withoutProduct(products []cart.Product, productID string) []cart.Product {
	kept := make([]cart.Product, 0, len(products))
	for _, product := range products {
		if product.ID != productID {
			kept = append(kept, product)
		}
	}
	return kept
}
