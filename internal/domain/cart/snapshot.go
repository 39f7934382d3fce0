package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/example/food-cart/internal/infrastructure/store"
)

const KeySnapshot = "cart_snapshot"

// snapshot is the persisted copy of the cart. While an optimistic change is
// in flight Pending is set and Rollback holds the value to restore.
type snapshot struct {
	Key      string `json:"key"`
	Cart     *Cart  `json:"cart"`
	Sequence uint64 `json:"sequence"`
	Pending  bool   `json:"pending,omitempty"`
	Rollback *Cart  `json:"rollback,omitempty"`
}

func loadSnapshot(ctx context.Context, st store.Store) (*snapshot, error) {
	raw, err := st.Get(ctx, KeySnapshot)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil || snap.Cart == nil {
		log.Printf("[Cart] Discarding unreadable snapshot: %v", err)
		if delErr := st.Delete(ctx, KeySnapshot); delErr != nil {
			log.Printf("[Cart] Failed to delete unreadable snapshot: %v", delErr)
		}
		return nil, nil
	}
	return &snap, nil
}

func saveSnapshot(ctx context.Context, st store.Store, snap snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := st.Set(ctx, KeySnapshot, data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
