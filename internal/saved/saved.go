package saved

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/state"
)

// Store owns the set of saved ("liked") product IDs. IDs are kept in
// insertion order so the persisted array is stable.
type Store struct {
	state    *state.Store[[]string]
	notifier notify.Notifier
}

func cloneIDs(ids []string) []string {
	return append(make([]string, 0, len(ids)), ids...)
}

// New creates an empty, unpersisted saved-items store.
func New(notifier notify.Notifier) *Store {
	return &Store{
		state:    state.New([]string{}, cloneIDs),
		notifier: notifier,
	}
}

// NewPersisted creates a store rehydrated from kv under key that writes every
// change back.
func NewPersisted(ctx context.Context, kv state.KV, key string, notifier notify.Notifier, logger *slog.Logger) *Store {
	s := New(notifier)
	state.Persist(ctx, s.state, kv, key, codec, logger.With(slog.String("component", "saved")))
	return s
}

var codec = state.Codec[[]string]{
	Encode: func(ids []string) (string, error) {
		b, err := json.Marshal(ids)
		return string(b), err
	},
	Decode: func(raw string) ([]string, error) {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != "" && !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
		return out, nil
	},
}

func displayName(id, name string) string {
	if name == "" {
		return id
	}
	return name
}

// IsSaved reports whether productID is in the set.
func (s *Store) IsSaved(productID string) bool {
	return slices.Contains(s.state.Get(), productID)
}

// Add inserts productID. Adding an ID that is already saved changes nothing
// and emits no notification.
func (s *Store) Add(ctx context.Context, productID, name string) {
	if productID == "" {
		return
	}
	var inserted bool
	s.state.Update(ctx, func(ids *[]string) bool {
		inserted = insert(ids, productID)
		return inserted
	})
	if inserted {
		s.notifier.Success(ctx, displayName(productID, name)+" saved!")
	}
}

// Remove deletes productID if present. The "removed" notification is emitted
// whether or not the ID was saved.
func (s *Store) Remove(ctx context.Context, productID, name string) {
	s.state.Update(ctx, func(ids *[]string) bool {
		return remove(ids, productID)
	})
	s.notifier.Success(ctx, displayName(productID, name)+" removed")
}

// Toggle removes the product if saved and adds it otherwise, as one atomic
// step. It returns whether the product is saved afterwards.
func (s *Store) Toggle(ctx context.Context, product domain.Product) (saved bool) {
	if product.ID == "" {
		return false
	}
	s.state.Update(ctx, func(ids *[]string) bool {
		if remove(ids, product.ID) {
			saved = false
			return true
		}
		saved = insert(ids, product.ID)
		return saved
	})

	name := displayName(product.ID, product.Name)
	if saved {
		s.notifier.Success(ctx, name+" saved!")
	} else {
		s.notifier.Success(ctx, name+" removed")
	}
	return saved
}

// Count returns the number of saved products.
func (s *Store) Count() int {
	return len(s.state.Get())
}

// IDs returns the saved product IDs in insertion order.
func (s *Store) IDs() []string {
	return s.state.Get()
}

// Subscribe calls fn with the saved IDs after every change.
func (s *Store) Subscribe(fn func([]string)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}

func insert(ids *[]string, id string) bool {
	if slices.Contains(*ids, id) {
		return false
	}
	*ids = append(*ids, id)
	return true
}

func remove(ids *[]string, id string) bool {
	i := slices.Index(*ids, id)
	if i < 0 {
		return false
	}
	*ids = slices.Delete(*ids, i, i+1)
	return true
}
