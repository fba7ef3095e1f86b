package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/services/storefront/cart"
	"github.com/louisbranch/storefront/internal/services/storefront/keys"
	"github.com/louisbranch/storefront/internal/services/storefront/mutation"
	"github.com/louisbranch/storefront/internal/services/storefront/notify"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
	"github.com/shopspring/decimal"
)

const (
	ordersPath   = "/orders"
	checkoutLane = "checkout"
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderLine is one purchased product.
type OrderLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Order is a placed order. IsOptimistic marks the local placeholder shown
// while checkout is pending.
type Order struct {
	ID              string          `json:"id"`
	StoreID         string          `json:"storeId"`
	Lines           []OrderLine     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	ShippingAddress string          `json:"shippingAddress,omitempty"`
	DateCreated     time.Time       `json:"dateCreated"`
	IsOptimistic    bool            `json:"-"`
}

// PlaceOrderInput is the checkout form.
type PlaceOrderInput struct {
	ShippingAddress string
	PaymentMethod   string
	Notes           string
}

type orderItemBody struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type placeOrderBody struct {
	StoreID         string          `json:"storeId"`
	Items           []orderItemBody `json:"items"`
	ShippingAddress string          `json:"shippingAddress,omitempty"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

func (c *Client) ordersFetcher() querycache.Fetcher {
	return func(ctx context.Context, _ querycache.Key) (any, error) {
		return remote.GetJSON[[]Order](ctx, c.remote, ordersPath)
	}
}

// Orders returns the order list of the signed-in shopper. Signed out, it
// returns nothing and fetches nothing.
func (c *Client) Orders() ([]Order, querycache.Entry) {
	user, ok := c.signedIn()
	if !ok {
		return nil, querycache.Entry{}
	}
	entry := c.cache.Read(keys.Orders(user.ID), c.ordersFetcher(), querycache.Policy{})
	orders, _ := querycache.Value[[]Order](entry)
	return orders, entry
}

// LoadOrders waits for a fresh order list.
func (c *Client) LoadOrders(ctx context.Context) ([]Order, error) {
	user, err := c.requireUser("see your orders")
	if err != nil {
		return nil, err
	}
	entry, err := c.cache.Fetch(ctx, keys.Orders(user.ID), c.ordersFetcher())
	if err != nil {
		return nil, remote.Classify(err)
	}
	orders, _ := querycache.Value[[]Order](entry)
	return orders, nil
}

// PlaceOrder checks out the cart. A pending order is prepended to the order
// list right away; the ordered lines leave the cart only once the order is
// confirmed.
func (c *Client) PlaceOrder(ctx context.Context, input PlaceOrderInput) (Order, *mutation.Mutation, error) {
	user, err := c.requireUser("place an order")
	if err != nil {
		return Order{}, nil, err
	}
	snapshot := c.ledger.Snapshot()
	if snapshot.Empty() {
		return Order{}, nil, c.reject(apperrors.New(apperrors.CodeValidationFailure, "cart is empty"))
	}
	tempID, err := id.NewTemporaryID()
	if err != nil {
		return Order{}, nil, fmt.Errorf("generate order id: %w", err)
	}

	pending := pendingOrder(tempID, snapshot, input, c.now())
	body := placeOrderBody{
		StoreID:         snapshot.ActiveStoreID,
		ShippingAddress: pending.ShippingAddress,
		PaymentMethod:   pending.PaymentMethod,
		Notes:           strings.TrimSpace(input.Notes),
	}
	for _, line := range snapshot.Lines {
		body.Items = append(body.Items, orderItemBody{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	toast := notify.Success(notify.EventOrderPlaced, map[string]string{
		"Items": strconv.Itoa(snapshot.ItemCount()),
	})

	m, err := c.pipeline.Run(ctx, mutation.Request{
		Name:            "place order",
		Lane:            checkoutLane,
		RequireIdentity: true,
		TargetKeys:      []querycache.Key{keys.Orders(user.ID)},
		Patch: func(_ querycache.Key, current any, _ bool) (any, bool) {
			orders, _ := current.([]Order)
			return append([]Order{pending}, orders...), true
		},
		Remote: func(ctx context.Context) (any, error) {
			payload, err := c.remote.Post(ctx, ordersPath, body)
			if err != nil {
				return nil, err
			}
			var placed Order
			if err := payload.Decode(&placed); err != nil {
				return nil, err
			}
			return placed, nil
		},
		OnConfirm: func(ctx context.Context, _ any) {
			if err := c.ledger.Deduct(ctx, snapshot); err != nil {
				log.Printf("remove ordered items from cart: %v", err)
			}
		},
		Invalidate:   []querycache.Key{keys.Products()},
		SuccessToast: &toast,
	})
	if err != nil {
		return Order{}, nil, err
	}
	return pending, m, nil
}

func pendingOrder(orderID string, snapshot cart.Snapshot, input PlaceOrderInput, now time.Time) Order {
	order := Order{
		ID:              orderID,
		StoreID:         snapshot.ActiveStoreID,
		Total:           snapshot.Subtotal(),
		Status:          OrderPending,
		PaymentMethod:   strings.TrimSpace(input.PaymentMethod),
		ShippingAddress: strings.TrimSpace(input.ShippingAddress),
		DateCreated:     now,
		IsOptimistic:    true,
	}
	order.Lines = make([]OrderLine, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		order.Lines = append(order.Lines, OrderLine{
			ProductID: line.ProductID,
			Name:      line.Product.Name,
			Price:     line.Product.Price,
			Quantity:  line.Quantity,
		})
	}
	return order
}
