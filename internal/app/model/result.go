package model

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
)

// Result is the single document printed on stdout. Exactly one of the two
// shapes is produced: success with transcript, language and duration, or
// failure with error.
type Result struct {
	Success    bool     `json:"success" jsonschema:"description=Whether transcription completed"`
	Transcript *string  `json:"transcript,omitempty" jsonschema:"description=Concatenated segment text with surrounding whitespace removed"`
	Language   *string  `json:"language,omitempty" jsonschema:"description=Detected or requested language code"`
	Duration   *float64 `json:"duration,omitempty" jsonschema:"description=Audio duration in seconds,minimum=0"`
	Error      *string  `json:"error,omitempty" jsonschema:"description=Human readable failure reason"`
}

// Success builds a success result. Durations that are not finite or are
// negative are reported as 0.
func Success(transcript, language string, duration float64) Result {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		duration = 0
	}
	return Result{
		Success:    true,
		Transcript: &transcript,
		Language:   &language,
		Duration:   &duration,
	}
}

// Failure builds a failure result carrying message.
func Failure(message string) Result {
	return Result{Success: false, Error: &message}
}

// FailureFromError builds a failure result from err's text.
func FailureFromError(err error) Result {
	return Failure(err.Error())
}

// Marshal encodes r as one line of JSON without a trailing newline.
func (r Result) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteTo writes r followed by a newline.
func (r Result) WriteTo(w io.Writer) (int64, error) {
	data, err := r.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(append(data, '\n'))
	return int64(n), err
}
