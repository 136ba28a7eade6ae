package port

import "context"

type DedupRepository interface {
	// Reserve marks key as seen, returns false if it already was
	Reserve(ctx context.Context, key string) (bool, error)

	// Release forgets key so that the request may be retried
	Release(ctx context.Context, key string) error
}
