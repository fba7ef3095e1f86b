package keys

import "testing"

func TestFamiliesNestUnderTheirPrefix(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		key    string
		prefix string
	}{
		{name: "product list", key: ProductList(map[string]string{"store": "s1"}).String(), prefix: ProductLists().String()},
		{name: "product list in family", key: ProductList(nil).String(), prefix: Products().String()},
		{name: "product detail in family", key: ProductDetail("p1").String(), prefix: Products().String()},
		{name: "wishlist items", key: WishlistItems("u1").String(), prefix: Wishlist().String()},
		{name: "wishlist member", key: WishlistMember("u1", "p1").String(), prefix: Wishlist().String()},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if !hasPrefix(tc.key, tc.prefix) {
				t.Fatalf("%s does not nest under %s", tc.key, tc.prefix)
			}
		})
	}
	if ProductDetail("p1").HasPrefix(ProductLists()) {
		t.Fatal("product detail must not match the listing prefix")
	}
	if Messages("c1").HasPrefix(Conversations("c1")) {
		t.Fatal("messages must not match the conversation list")
	}
}

func TestEncodeFilterIsStable(t *testing.T) {
	t.Parallel()

	a := EncodeFilter(map[string]string{"store": "s1", "q": "mug"})
	b := EncodeFilter(map[string]string{"q": "mug", "store": "s1"})
	if a != b || a != "q=mug&store=s1" {
		t.Fatalf("EncodeFilter = %q and %q", a, b)
	}
	if got := EncodeFilter(nil); got != "all" {
		t.Fatalf("EncodeFilter(nil) = %q, want all", got)
	}
	if got := EncodeFilter(map[string]string{"q": " "}); got != "all" {
		t.Fatalf("EncodeFilter(blank) = %q, want all", got)
	}
}

func hasPrefix(key, prefix string) bool {
	return len(key) > len(prefix) && key[:len(prefix)] == prefix && key[len(prefix)] == '/'
}
