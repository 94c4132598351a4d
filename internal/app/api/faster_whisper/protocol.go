package faster_whisper

import (
	"encoding/json"
	"fmt"

	"whisper-transcribe/internal/app/api/provider"
)

// Worker message types.
const (
	msgReady   = "ready"
	msgInfo    = "info"
	msgSegment = "segment"
	msgEnd     = "end"
	msgError   = "error"
)

// message is one line of worker output. Fields are pointers where the worker
// may send null.
type message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Stage   string `json:"stage,omitempty"`

	Language            *string  `json:"language,omitempty"`
	LanguageProbability *float64 `json:"language_probability,omitempty"`
	Duration            *float64 `json:"duration,omitempty"`

	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func decodeMessage(line []byte) (message, error) {
	var msg message
	if err := json.Unmarshal(line, &msg); err != nil {
		return message{}, fmt.Errorf("invalid worker message %q: %w", string(line), err)
	}
	if msg.Type == "" {
		return message{}, fmt.Errorf("worker message without type: %q", string(line))
	}
	return msg, nil
}

func (m message) info() provider.Info {
	var info provider.Info
	if m.Language != nil {
		info.Language = *m.Language
	}
	if m.LanguageProbability != nil {
		info.LanguageProbability = *m.LanguageProbability
	}
	if m.Duration != nil {
		info.Duration = *m.Duration
	}
	return info
}

func (m message) segment() provider.Segment {
	return provider.Segment{
		ID:    m.ID,
		Start: m.Start,
		End:   m.End,
		Text:  m.Text,
	}
}
