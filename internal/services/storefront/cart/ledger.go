// Package cart holds the shopper's durable cart ledger.
//
// A ledger is bound to at most one store at a time, keeps every line within
// its captured stock bound, and persists the whole state before any mutating
// call returns.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/services/storefront/storage"
)

// ErrStoreNotConfigured indicates the ledger was built without a record store.
var ErrStoreNotConfigured = errors.New("cart record store is not configured")

// Ledger is the persisted cart. Mutations are serialized.
type Ledger struct {
	mu     sync.Mutex
	store  storage.RecordStore
	record string
	state  Snapshot
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRecordName overrides the record the ledger persists to.
func WithRecordName(name string) Option {
	return func(l *Ledger) {
		if name = strings.TrimSpace(name); name != "" {
			l.record = name
		}
	}
}

// Open loads the ledger from store. A missing record is an empty cart.
func Open(ctx context.Context, store storage.RecordStore, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, ErrStoreNotConfigured
	}
	ledger := &Ledger{store: store, record: RecordName}
	for _, opt := range opts {
		opt(ledger)
	}

	data, err := store.Load(ctx, ledger.record)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ledger, nil
	case err != nil:
		return nil, fmt.Errorf("load cart: %w", err)
	}
	state, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	ledger.state = state
	return ledger, nil
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.clone()
}

// ItemCount is the total quantity across lines.
func (l *Ledger) ItemCount() int {
	return l.Snapshot().ItemCount()
}

// AddItem adds quantity of product, merging with an existing line.
func (l *Ledger) AddItem(ctx context.Context, product Product, quantity int) error {
	if l == nil {
		return ErrStoreNotConfigured
	}
	product = normalizeProduct(product)
	if product.ID == "" || product.StoreID == "" {
		return apperrors.New(apperrors.CodeValidationFailure, "product id and store id are required")
	}
	if quantity < 1 {
		return apperrors.WithMetadata(apperrors.CodeValidationFailure, "quantity must be at least 1", map[string]string{
			"Quantity": strconv.Itoa(quantity),
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.ActiveStoreID != "" && l.state.ActiveStoreID != product.StoreID {
		return apperrors.WithMetadata(apperrors.CodeCrossStoreConflict, "cart is bound to another store", map[string]string{
			"ActiveStoreID":  l.state.ActiveStoreID,
			"ProductStoreID": product.StoreID,
			"Product":        product.Name,
		})
	}

	next := l.state.clone()
	total := quantity
	index := next.indexOf(product.ID)
	if index >= 0 {
		total += next.Lines[index].Quantity
	}
	if total > product.AvailableStock {
		return insufficientStock(product, total)
	}

	line := Line{ProductID: product.ID, Quantity: total, Product: product}
	if index >= 0 {
		next.Lines[index] = line
	} else {
		next.Lines = append(next.Lines, line)
	}
	next.ActiveStoreID = product.StoreID
	return l.commit(ctx, next)
}

// UpdateQuantity sets the quantity of an existing line. A quantity below one
// removes the line.
func (l *Ledger) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if l == nil {
		return ErrStoreNotConfigured
	}
	productID = strings.TrimSpace(productID)

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.state.clone()
	index := next.indexOf(productID)
	if quantity < 1 {
		if index < 0 {
			return nil
		}
		return l.commit(ctx, without(next, index))
	}
	if index < 0 {
		return apperrors.WithMetadata(apperrors.CodeNotFound, "product is not in the cart", map[string]string{
			"ProductID": productID,
		})
	}
	if quantity > next.Lines[index].Product.AvailableStock {
		return insufficientStock(next.Lines[index].Product, quantity)
	}
	next.Lines[index].Quantity = quantity
	return l.commit(ctx, next)
}

// RemoveItem drops the line for productID. Removing a missing product is a
// no-op.
func (l *Ledger) RemoveItem(ctx context.Context, productID string) error {
	if l == nil {
		return ErrStoreNotConfigured
	}
	productID = strings.TrimSpace(productID)

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.state.clone()
	index := next.indexOf(productID)
	if index < 0 {
		return nil
	}
	return l.commit(ctx, without(next, index))
}

// Clear empties the cart and releases the store binding.
func (l *Ledger) Clear(ctx context.Context) error {
	if l == nil {
		return ErrStoreNotConfigured
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commit(ctx, Snapshot{})
}

// Deduct removes the quantities in submitted from the cart. Lines added or
// raised after submitted was taken keep whatever exceeds it.
func (l *Ledger) Deduct(ctx context.Context, submitted Snapshot) error {
	if l == nil {
		return ErrStoreNotConfigured
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.state.clone()
	if next.ActiveStoreID != submitted.ActiveStoreID {
		return nil
	}
	lines := next.Lines[:0]
	for _, line := range next.Lines {
		if ordered, ok := submitted.Line(line.ProductID); ok {
			line.Quantity -= ordered.Quantity
		}
		if line.Quantity > 0 {
			lines = append(lines, line)
		}
	}
	next.Lines = lines
	return l.commit(ctx, next)
}

// Restore replaces the whole state with snapshot. It is used to undo a
// tentative local effect and fails if snapshot breaks a cart invariant.
func (l *Ledger) Restore(ctx context.Context, snapshot Snapshot) error {
	if l == nil {
		return ErrStoreNotConfigured
	}
	snapshot = snapshot.clone()
	if err := checkInvariants(snapshot); err != nil {
		return apperrors.Wrap(apperrors.CodeValidationFailure, "restore cart", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commit(ctx, snapshot)
}

// commit persists next and only then makes it the visible state. Callers hold mu.
func (l *Ledger) commit(ctx context.Context, next Snapshot) error {
	if len(next.Lines) == 0 {
		next = Snapshot{}
	}
	data, err := encodeSnapshot(next)
	if err != nil {
		return err
	}
	if err := l.store.Save(ctx, l.record, data); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	l.state = next
	return nil
}

func without(snapshot Snapshot, index int) Snapshot {
	snapshot.Lines = append(snapshot.Lines[:index:index], snapshot.Lines[index+1:]...)
	if len(snapshot.Lines) == 0 {
		return Snapshot{}
	}
	return snapshot
}

func insufficientStock(product Product, requested int) error {
	return apperrors.WithMetadata(apperrors.CodeInsufficientStock, "requested quantity exceeds available stock", map[string]string{
		"Product":   product.Name,
		"Requested": strconv.Itoa(requested),
		"Available": strconv.Itoa(product.AvailableStock),
	})
}
