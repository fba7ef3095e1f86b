// Package keys names the cache key families of the storefront and the
// prefixes invalidated together.
package keys

import (
	"net/url"
	"sort"
	"strings"

	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
)

const (
	familyProducts      = "products"
	familyOrders        = "orders"
	familyWishlist      = "wishlist"
	familyConversations = "conversations"
)

// Products is the prefix of every product key.
func Products() querycache.Key {
	return querycache.NewKey(familyProducts)
}

// ProductLists is the prefix of every product listing.
func ProductLists() querycache.Key {
	return querycache.NewKey(familyProducts, "list")
}

// ProductList is one filtered listing. Filters are encoded in a stable order
// so equal filters share a key.
func ProductList(filter map[string]string) querycache.Key {
	return ProductLists().Child(EncodeFilter(filter))
}

// ProductDetail is one product.
func ProductDetail(productID string) querycache.Key {
	return querycache.NewKey(familyProducts, "detail", productID)
}

// Orders is the order list of a user.
func Orders(userID string) querycache.Key {
	return querycache.NewKey(familyOrders, "list", userID)
}

// Wishlist is the prefix of every wishlist key.
func Wishlist() querycache.Key {
	return querycache.NewKey(familyWishlist)
}

// WishlistItems is the wishlist of a user.
func WishlistItems(userID string) querycache.Key {
	return querycache.NewKey(familyWishlist, "list", userID)
}

// WishlistMember is the membership flag of one product in a user's wishlist.
func WishlistMember(userID, productID string) querycache.Key {
	return querycache.NewKey(familyWishlist, "member", userID, productID)
}

// Conversations is the conversation list of a user.
func Conversations(userID string) querycache.Key {
	return querycache.NewKey(familyConversations, "list", userID)
}

// Messages is the message list of one conversation.
func Messages(conversationID string) querycache.Key {
	return querycache.NewKey(familyConversations, "messages", conversationID)
}

// EncodeFilter renders filter as a sorted query string; "all" when empty.
func EncodeFilter(filter map[string]string) string {
	if len(filter) == 0 {
		return "all"
	}
	names := make([]string, 0, len(filter))
	for name := range filter {
		names = append(names, name)
	}
	sort.Strings(names)
	values := url.Values{}
	for _, name := range names {
		if value := strings.TrimSpace(filter[name]); value != "" {
			values.Set(name, value)
		}
	}
	if len(values) == 0 {
		return "all"
	}
	return values.Encode()
}
