package cart

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/state"
)

// Store owns the shopping cart. Operations never fail the caller; every
// change is persisted through the underlying state container.
type Store struct {
	state    *state.Store[domain.Cart]
	notifier notify.Notifier
}

// New creates an empty, unpersisted cart store.
func New(notifier notify.Notifier) *Store {
	return &Store{
		state:    state.New(domain.Cart{Lines: []domain.CartLine{}}, domain.Cart.Clone),
		notifier: notifier,
	}
}

// NewPersisted creates a cart store rehydrated from kv under key that writes
// every change back.
func NewPersisted(ctx context.Context, kv state.KV, key string, notifier notify.Notifier, logger *slog.Logger) *Store {
	s := New(notifier)
	state.Persist(ctx, s.state, kv, key, codec, logger.With(slog.String("component", "cart")))
	return s
}

// The persisted form is only the array of lines.
var codec = state.Codec[domain.Cart]{
	Encode: func(c domain.Cart) (string, error) {
		b, err := json.Marshal(c.Clone().Lines)
		return string(b), err
	},
	Decode: func(raw string) (domain.Cart, error) {
		var lines []domain.CartLine
		if err := json.Unmarshal([]byte(raw), &lines); err != nil {
			return domain.Cart{}, err
		}
		return sanitize(lines), nil
	},
}

// sanitize enforces the cart invariants on rehydrated data: one line per
// product ID and quantity of at least 1.
func sanitize(lines []domain.CartLine) domain.Cart {
	c := domain.Cart{Lines: make([]domain.CartLine, 0, len(lines))}
	for _, l := range lines {
		if l.ID == "" {
			continue
		}
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		if i := c.IndexOf(l.ID); i >= 0 {
			c.Lines[i].Quantity += l.Quantity
			continue
		}
		c.Lines = append(c.Lines, l)
	}
	return c
}

// AddItem adds quantity of product, merging into an existing line for the
// same product ID. A quantity below 1 counts as 1. New lines snapshot the
// product as it is now.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.state.Update(ctx, func(c *domain.Cart) bool {
		if i := c.IndexOf(product.ID); i >= 0 {
			c.Lines[i].Quantity += quantity
			return true
		}
		line := domain.CartLine{Product: product, Quantity: quantity}
		if product.Images != nil {
			line.Images = append([]string(nil), product.Images...)
		}
		c.Lines = append(c.Lines, line)
		return true
	})

	s.notifier.Success(ctx, product.Name+" added to cart")
}

// RemoveItem deletes the line for productID. Removing an absent product is a
// no-op and emits no notification.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	var removed *domain.CartLine
	s.state.Update(ctx, func(c *domain.Cart) bool {
		i := c.IndexOf(productID)
		if i < 0 {
			return false
		}
		line := c.Lines[i]
		removed = &line
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return true
	})

	if removed != nil {
		s.notifier.Success(ctx, removed.Name+" removed from cart")
	}
}

// UpdateQuantity sets the quantity of an existing line, clamped to at least
// 1. It never removes a line and ignores unknown product IDs.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	s.state.Update(ctx, func(c *domain.Cart) bool {
		i := c.IndexOf(productID)
		if i < 0 || c.Lines[i].Quantity == quantity {
			return false
		}
		c.Lines[i].Quantity = quantity
		return true
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.state.Update(ctx, func(c *domain.Cart) bool {
		c.Lines = []domain.CartLine{}
		return true
	})
}

// Cart returns a snapshot of the cart.
func (s *Store) Cart() domain.Cart {
	return s.state.Get()
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	return s.state.Get().Lines
}

// Total is computed from the current lines on every call.
func (s *Store) Total() int64 {
	return s.state.Get().Total()
}

// ItemCount is the sum of quantities.
func (s *Store) ItemCount() int {
	return s.state.Get().ItemCount()
}

// Subscribe calls fn with a snapshot after every change.
func (s *Store) Subscribe(fn func(domain.Cart)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}
