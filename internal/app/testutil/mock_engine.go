package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"whisper-transcribe/internal/app/api/provider"
)

// MockEngine is a testify mock of provider.Engine.
type MockEngine struct {
	mock.Mock
}

// NewMockEngine creates a MockEngine whose Name returns name.
func NewMockEngine(name string) *MockEngine {
	m := &MockEngine{}
	m.On("Name").Return(name).Maybe()
	return m
}

func (m *MockEngine) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockEngine) Probe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEngine) LoadModel(ctx context.Context, opts provider.ModelOptions) (provider.Model, error) {
	args := m.Called(ctx, opts)
	model, _ := args.Get(0).(provider.Model)
	return model, args.Error(1)
}

// MockModel is a testify mock of provider.Model.
type MockModel struct {
	mock.Mock
}

func (m *MockModel) Transcribe(ctx context.Context, audioPath string, opts provider.DecodeOptions) (provider.SegmentReader, provider.Info, error) {
	args := m.Called(ctx, audioPath, opts)
	reader, _ := args.Get(0).(provider.SegmentReader)
	info, _ := args.Get(1).(provider.Info)
	return reader, info, args.Error(2)
}

func (m *MockModel) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Segments builds a reader over texts with one second per segment.
func Segments(texts ...string) provider.SegmentReader {
	segments := make([]provider.Segment, len(texts))
	for i, text := range texts {
		segments[i] = provider.Segment{
			ID:    i,
			Start: float64(i),
			End:   float64(i + 1),
			Text:  text,
		}
	}
	return provider.NewSliceReader(segments)
}

// FailingReader yields the given segments and then err.
type FailingReader struct {
	Segments []provider.Segment
	Err      error
	pos      int
	Closed   bool
}

func (r *FailingReader) Next() (provider.Segment, error) {
	if r.pos < len(r.Segments) {
		seg := r.Segments[r.pos]
		r.pos++
		return seg, nil
	}
	return provider.Segment{}, r.Err
}

func (r *FailingReader) Close() error {
	r.Closed = true
	return nil
}
