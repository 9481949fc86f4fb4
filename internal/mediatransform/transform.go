package mediatransform

import "context"

// Result is what the transform pipeline hands back for storage: the bytes to
// serve, a low-resolution blurred preview, and pixel dimensions when known.
type Result struct {
	Display []byte
	Preview []byte
	Width   *int
	Height  *int
}

// Transformer is the media-compression collaborator boundary. The service
// stores and serves the outputs; it never interprets pixels itself.
type Transformer interface {
	Transform(ctx context.Context, data []byte, mimeType string) (Result, error)
}

// Passthrough is the in-process stand-in used when no compression pipeline is
// deployed: originals are served as-is and no preview is derived.
type Passthrough struct{}

func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (*Passthrough) Transform(_ context.Context, data []byte, _ string) (Result, error) {
	return Result{Display: data}, nil
}
