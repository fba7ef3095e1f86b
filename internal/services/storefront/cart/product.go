package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product is the catalog snapshot captured when a line is added.
type Product struct {
	ID             string          `json:"id"`
	StoreID        string          `json:"storeId"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	AvailableStock int             `json:"availableStock"`
	ImageURL       string          `json:"imageUrl,omitempty"`
}

// Line is one product entry in the cart.
type Line struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"productSnapshot"`
}

// Total returns price times quantity for the line.
func (l Line) Total() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is an immutable copy of the ledger state.
type Snapshot struct {
	ActiveStoreID string
	Lines         []Line
}

// Empty reports whether the snapshot has no lines.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// ItemCount is the sum of line quantities.
func (s Snapshot) ItemCount() int {
	count := 0
	for _, line := range s.Lines {
		count += line.Quantity
	}
	return count
}

// Subtotal is the sum of price times quantity over all lines.
func (s Snapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		total = total.Add(line.Total())
	}
	return total
}

// Line returns the line for productID.
func (s Snapshot) Line(productID string) (Line, bool) {
	if i := s.indexOf(productID); i >= 0 {
		return s.Lines[i], true
	}
	return Line{}, false
}

func (s Snapshot) indexOf(productID string) int {
	for i, line := range s.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s Snapshot) clone() Snapshot {
	cloned := Snapshot{ActiveStoreID: s.ActiveStoreID}
	if len(s.Lines) > 0 {
		cloned.Lines = append([]Line(nil), s.Lines...)
	}
	return cloned
}

func normalizeProduct(product Product) Product {
	product.ID = strings.TrimSpace(product.ID)
	product.StoreID = strings.TrimSpace(product.StoreID)
	product.Name = strings.TrimSpace(product.Name)
	return product
}
