package transload

import (
	"context"
	"io"
)

// UploadOutput ...
type UploadOutput struct {
	Location  string
	ETag      string
	VersionID string
}

// Destination streams a body into object storage.
// Upload must consume body while writing and must not read it into memory as a whole.
type Destination interface {
	Upload(ctx context.Context, spec ObjectSpec, body io.Reader) (UploadOutput, error)
}
