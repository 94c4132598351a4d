package provider

import (
	"context"
)

// Engine is a speech-recognition backend. The adapter never decodes audio
// itself; everything below this interface is a black box.
type Engine interface {
	// Name returns the registry name of the engine.
	Name() string

	// Probe reports whether the engine's runtime is installed and usable.
	// It is called once at startup, before any input is inspected.
	Probe(ctx context.Context) error

	// LoadModel loads the named model with the given device and precision.
	LoadModel(ctx context.Context, opts ModelOptions) (Model, error)
}

// Model is a loaded speech-recognition model.
type Model interface {
	// Transcribe starts decoding audioPath. Segments are produced lazily by the
	// returned reader; Info is available as soon as Transcribe returns.
	Transcribe(ctx context.Context, audioPath string, opts DecodeOptions) (SegmentReader, Info, error)

	// Close releases the model.
	Close() error
}

// SegmentReader is a lazy, ordered stream of segments. Next returns io.EOF
// once the stream is exhausted.
type SegmentReader interface {
	Next() (Segment, error)
	Close() error
}
