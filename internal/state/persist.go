package state

import (
	"context"
	"log/slog"
)

// KV is the persistence surface a store writes through to.
type KV interface {
	Load(ctx context.Context, key string) (string, bool)
	Save(ctx context.Context, key, value string)
}

// Codec converts a store value to and from its persisted form.
type Codec[T any] struct {
	Encode func(T) (string, error)
	Decode func(string) (T, error)
}

// Persist rehydrates s from kv under key and then saves every committed
// change back. Missing or undecodable data leaves s at its initial value.
func Persist[T any](ctx context.Context, s *Store[T], kv KV, key string, codec Codec[T], logger *slog.Logger) {
	if raw, ok := kv.Load(ctx, key); ok {
		v, err := codec.Decode(raw)
		if err != nil {
			logger.WarnContext(ctx, "discarding unreadable persisted state",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		} else {
			s.replace(v)
		}
	}

	s.OnCommit(func(ctx context.Context, v T) {
		raw, err := codec.Encode(v)
		if err != nil {
			logger.ErrorContext(ctx, "encode state for persistence",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return
		}
		kv.Save(ctx, key, raw)
	})
}
