package app

import (
	"context"
	"strconv"

	"github.com/louisbranch/storefront/internal/services/storefront/cart"
	"github.com/louisbranch/storefront/internal/services/storefront/notify"
)

// Cart returns the current cart.
func (c *Client) Cart() cart.Snapshot {
	return c.ledger.Snapshot()
}

// AddToCart adds quantity of product to the cart. Local rejections such as
// a cross-store conflict are notified and returned; the cart is unchanged.
func (c *Client) AddToCart(ctx context.Context, product cart.Product, quantity int) error {
	if err := c.ledger.AddItem(ctx, product, quantity); err != nil {
		return c.reject(err)
	}
	c.sink.Notify(notify.Success(notify.EventCartItemAdded, map[string]string{
		"Product": product.Name,
		"Items":   strconv.Itoa(quantity),
	}))
	return nil
}

// UpdateCartQuantity sets the quantity of a line; zero or less removes it.
func (c *Client) UpdateCartQuantity(ctx context.Context, productID string, quantity int) error {
	line, _ := c.ledger.Snapshot().Line(productID)
	if err := c.ledger.UpdateQuantity(ctx, productID, quantity); err != nil {
		return c.reject(err)
	}
	if quantity < 1 {
		c.sink.Notify(notify.Success(notify.EventCartItemRemoved, map[string]string{"Product": line.Product.Name}))
		return nil
	}
	c.sink.Notify(notify.Success(notify.EventCartUpdated, map[string]string{
		"Product": line.Product.Name,
		"Items":   strconv.Itoa(quantity),
	}))
	return nil
}

// RemoveFromCart removes a line.
func (c *Client) RemoveFromCart(ctx context.Context, productID string) error {
	line, found := c.ledger.Snapshot().Line(productID)
	if err := c.ledger.RemoveItem(ctx, productID); err != nil {
		return c.reject(err)
	}
	if found {
		c.sink.Notify(notify.Success(notify.EventCartItemRemoved, map[string]string{"Product": line.Product.Name}))
	}
	return nil
}

// ClearCart empties the cart and unbinds it from its store.
func (c *Client) ClearCart(ctx context.Context) error {
	if err := c.ledger.Clear(ctx); err != nil {
		return c.reject(err)
	}
	c.sink.Notify(notify.Success(notify.EventCartCleared, nil))
	return nil
}
