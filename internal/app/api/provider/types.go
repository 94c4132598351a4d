package provider

import (
	"io"
)

// ComputeType is the numeric precision used by the engine for inference.
type ComputeType string

const (
	ComputeFloat32     ComputeType = "float32"
	ComputeFloat16     ComputeType = "float16"
	ComputeInt8        ComputeType = "int8"
	ComputeInt8Float16 ComputeType = "int8_float16"
)

// AutoLanguage asks the engine to detect the spoken language.
const AutoLanguage = "auto"

// Segment is a timed chunk of recognized text.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
	Text  string  `json:"text"`
}

// Info is the metadata the engine reports about the audio it decodes.
// Zero values mean the engine did not report the field.
type Info struct {
	Language            string  `json:"language,omitempty"`
	LanguageProbability float64 `json:"language_probability,omitempty"`
	Duration            float64 `json:"duration,omitempty"` // seconds
}

// ModelOptions selects and configures the model to load.
type ModelOptions struct {
	Name         string
	Device       string
	ComputeType  ComputeType
	DownloadRoot string
}

// DecodeOptions are passed to Model.Transcribe.
type DecodeOptions struct {
	// Language is a language code, or "" for automatic detection.
	Language             string
	BeamSize             int
	VADFilter            bool
	MinSilenceDurationMs int
}

// NormalizeLanguage maps the CLI sentinel "auto" (and "") to automatic detection.
func NormalizeLanguage(language string) string {
	if language == AutoLanguage {
		return ""
	}
	return language
}

// TranscriptionError represents engine-specific errors
type TranscriptionError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Provider  string `json:"provider"`
	Retryable bool   `json:"retryable"`
	Cause     error  `json:"-"`
}

func (e *TranscriptionError) Error() string {
	return e.Message
}

func (e *TranscriptionError) Unwrap() error {
	return e.Cause
}

// SliceReader serves segments that were produced up front, for engines that
// return the whole result at once.
type SliceReader struct {
	segments []Segment
	pos      int
}

// NewSliceReader returns a SegmentReader over segments.
func NewSliceReader(segments []Segment) *SliceReader {
	return &SliceReader{segments: segments}
}

// Next implements SegmentReader.
func (r *SliceReader) Next() (Segment, error) {
	if r.pos >= len(r.segments) {
		return Segment{}, io.EOF
	}
	seg := r.segments[r.pos]
	r.pos++
	return seg, nil
}

// Close implements SegmentReader.
func (r *SliceReader) Close() error {
	r.pos = len(r.segments)
	return nil
}
