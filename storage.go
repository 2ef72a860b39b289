package phraseflow

import "context"

// SecureStore is the key-value persistence boundary used by the quota ledger
// (device keychain, encrypted file, or an in-memory fake in tests). Get
// returns ErrKeyNotFound for a missing key. Any mutable state behind an
// implementation must provide externally-consistent atomic operations.
type SecureStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
