package cart

import (
	"encoding/json"
	"fmt"
)

// RecordName is the persisted record holding the ledger.
const RecordName = "cart"

type record struct {
	ActiveStoreID *string `json:"activeStoreId"`
	Lines         []Line  `json:"lines"`
}

func encodeSnapshot(snapshot Snapshot) ([]byte, error) {
	rec := record{Lines: snapshot.Lines}
	if rec.Lines == nil {
		rec.Lines = []Line{}
	}
	if snapshot.ActiveStoreID != "" {
		storeID := snapshot.ActiveStoreID
		rec.ActiveStoreID = &storeID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode cart record: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Snapshot{}, fmt.Errorf("decode cart record: %w", err)
	}
	snapshot := Snapshot{Lines: rec.Lines}
	if rec.ActiveStoreID != nil {
		snapshot.ActiveStoreID = *rec.ActiveStoreID
	}
	if len(snapshot.Lines) == 0 {
		snapshot.Lines = nil
	}
	if err := checkInvariants(snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode cart record: %w", err)
	}
	return snapshot, nil
}

// checkInvariants verifies the single-store, stock-bound and binding rules.
func checkInvariants(snapshot Snapshot) error {
	if (snapshot.ActiveStoreID == "") != (len(snapshot.Lines) == 0) {
		return fmt.Errorf("store binding %q does not match %d lines", snapshot.ActiveStoreID, len(snapshot.Lines))
	}
	seen := make(map[string]struct{}, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		if line.ProductID == "" || line.ProductID != line.Product.ID {
			return fmt.Errorf("line product id %q does not match snapshot %q", line.ProductID, line.Product.ID)
		}
		if _, ok := seen[line.ProductID]; ok {
			return fmt.Errorf("duplicate line for product %q", line.ProductID)
		}
		seen[line.ProductID] = struct{}{}
		if line.Product.StoreID != snapshot.ActiveStoreID {
			return fmt.Errorf("product %q belongs to store %q, cart is bound to %q", line.ProductID, line.Product.StoreID, snapshot.ActiveStoreID)
		}
		if line.Quantity < 1 || line.Quantity > line.Product.AvailableStock {
			return fmt.Errorf("product %q quantity %d outside 1..%d", line.ProductID, line.Quantity, line.Product.AvailableStock)
		}
	}
	return nil
}
