package port

import (
	"context"
	"io"
)

type ArtworkStorage interface {
	// Save stores the upload and returns an opaque reference to it
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
}
