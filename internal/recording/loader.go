package recording

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

var (
	// ErrMalformedInput is returned when the recording is not a valid event sequence
	ErrMalformedInput = errors.New("malformed recording input")
	// ErrMissingSnapshot is returned when the recording has no full snapshot event
	ErrMissingSnapshot = errors.New("recording has no full snapshot event")
)

// DefaultStartURL is used when no meta event carries an href
const DefaultStartURL = "about:blank"

// Recording is a validated event sequence ready for conversion
type Recording struct {
	Events   []Event
	Snapshot *Event
	StartURL string
	Width    int
	Height   int
	Warnings []string
}

// envelope is the replay chunk shape accepted in addition to a bare array
type envelope struct {
	Events []Event `json:"events"`
}

// Parse decodes a recording, either a JSON array of events or an object
// with an "events" array.
func Parse(data []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedInput)
	}

	switch trimmed[0] {
	case '[':
		var events []Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		return events, nil
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if env.Events == nil {
			return nil, fmt.Errorf("%w: object has no \"events\" array", ErrMalformedInput)
		}
		return env.Events, nil
	}

	return nil, fmt.Errorf("%w: expected JSON array or object, got %q", ErrMalformedInput, trimmed[0])
}

// Load parses and validates a recording. placeholderURL replaces the start
// URL when no meta event provides one; an empty value falls back to
// DefaultStartURL.
func Load(data []byte, placeholderURL string) (*Recording, error) {
	events, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Validate(events, placeholderURL)
}

// Validate checks an already decoded event sequence
func Validate(events []Event, placeholderURL string) (*Recording, error) {
	rec := &Recording{Events: events}

	for i := range events {
		if events[i].Type == EventTypeFullSnapshot {
			rec.Snapshot = &events[i]
			break
		}
	}
	if rec.Snapshot == nil {
		return nil, ErrMissingSnapshot
	}

	for i := range events {
		meta, ok := events[i].DecodeMeta()
		if !ok {
			continue
		}
		rec.StartURL = meta.Href
		rec.Width = meta.Width
		rec.Height = meta.Height
		break
	}

	if rec.StartURL == "" {
		if placeholderURL == "" {
			placeholderURL = DefaultStartURL
		}
		rec.StartURL = placeholderURL
		msg := fmt.Sprintf("no meta event with href found, using placeholder start URL %q", placeholderURL)
		rec.Warnings = append(rec.Warnings, msg)
		log.Warn().Str("start_url", placeholderURL).Msg("No initial URL in recording, using placeholder")
	}

	return rec, nil
}
