package rate

import "context"

// Store is the key-value cache the rates are written to. Add never replaces
// an existing key's value with a different one for the same input.
type Store interface {
	Add(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string) (any, bool, error)
	// Peek returns def and false when key is not set.
	Peek(ctx context.Context, key string, def any) (any, bool, error)
}
