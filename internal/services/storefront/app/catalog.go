package app

import (
	"context"
	"net/url"

	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/services/storefront/cart"
	"github.com/louisbranch/storefront/internal/services/storefront/keys"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
)

const productsPath = "/products"

func productPath(productID string) string {
	return productsPath + "/" + url.PathEscape(productID)
}

func (c *Client) productsFetcher(filter map[string]string) querycache.Fetcher {
	path := productsPath
	if encoded := keys.EncodeFilter(filter); encoded != "all" {
		path += "?" + encoded
	}
	return func(ctx context.Context, _ querycache.Key) (any, error) {
		return remote.GetJSON[[]cart.Product](ctx, c.remote, path)
	}
}

func (c *Client) productFetcher(productID string) querycache.Fetcher {
	return func(ctx context.Context, _ querycache.Key) (any, error) {
		return remote.GetJSON[cart.Product](ctx, c.remote, productPath(productID))
	}
}

// Products returns the listing matching filter, such as {"store": id} or
// {"q": text}, and starts a refetch when it is stale.
func (c *Client) Products(filter map[string]string) ([]cart.Product, querycache.Entry) {
	entry := c.cache.Read(keys.ProductList(filter), c.productsFetcher(filter), querycache.Policy{})
	products, _ := querycache.Value[[]cart.Product](entry)
	return products, entry
}

// Product returns one product.
func (c *Client) Product(productID string) (cart.Product, querycache.Entry) {
	entry := c.cache.Read(keys.ProductDetail(productID), c.productFetcher(productID), querycache.Policy{})
	product, _ := querycache.Value[cart.Product](entry)
	return product, entry
}

// LoadProduct waits for a fresh copy of one product.
func (c *Client) LoadProduct(ctx context.Context, productID string) (cart.Product, error) {
	productID, err := requireID("product id", productID)
	if err != nil {
		return cart.Product{}, err
	}
	entry, err := c.cache.Fetch(ctx, keys.ProductDetail(productID), c.productFetcher(productID))
	if err != nil {
		return cart.Product{}, remote.Classify(err)
	}
	product, _ := querycache.Value[cart.Product](entry)
	return product, nil
}

// LoadProducts waits for a fresh listing matching filter.
func (c *Client) LoadProducts(ctx context.Context, filter map[string]string) ([]cart.Product, error) {
	entry, err := c.cache.Fetch(ctx, keys.ProductList(filter), c.productsFetcher(filter))
	if err != nil {
		return nil, remote.Classify(err)
	}
	products, _ := querycache.Value[[]cart.Product](entry)
	return products, nil
}
