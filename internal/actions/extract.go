// Package actions turns rrweb incremental events into a short list of
// user actions that can be replayed.
package actions

import (
	"github.com/gosight/gosight/scriptgen/internal/recording"
)

// Kind is the simplified action kind
type Kind string

const (
	KindClick Kind = "click"
	KindInput Kind = "input"
)

// Action is one replayable user action. Value is set for input actions only.
type Action struct {
	Kind      Kind
	TargetID  int64
	Value     *string
	Timestamp int64
}

type pendingInput struct {
	text      string
	timestamp int64
}

// inputBuffer keeps the latest text per target in first-insertion order
type inputBuffer struct {
	order   []int64
	entries map[int64]pendingInput
}

func newInputBuffer() *inputBuffer {
	return &inputBuffer{entries: make(map[int64]pendingInput)}
}

func (b *inputBuffer) upsert(id int64, text string, ts int64) {
	if _, ok := b.entries[id]; !ok {
		b.order = append(b.order, id)
	}
	b.entries[id] = pendingInput{text: text, timestamp: ts}
}

func (b *inputBuffer) flush(out []Action) []Action {
	for _, id := range b.order {
		entry := b.entries[id]
		value := entry.text
		out = append(out, Action{
			Kind:      KindInput,
			TargetID:  id,
			Value:     &value,
			Timestamp: entry.timestamp,
		})
	}
	b.order = b.order[:0]
	b.entries = make(map[int64]pendingInput)
	return out
}

// Extract walks the events once and returns clicks and coalesced inputs in
// recording order. Buffered inputs are emitted before the next click and at
// the end of the stream, in the order their targets were first typed into.
func Extract(events []recording.Event) []Action {
	buf := newInputBuffer()
	var out []Action

	for _, event := range events {
		inc, ok := event.DecodeIncremental()
		if !ok {
			continue
		}

		switch inc.Source {
		case recording.SourceMouseInteraction:
			if !inc.IsClick() || inc.ID == nil {
				continue
			}
			out = buf.flush(out)
			out = append(out, Action{
				Kind:      KindClick,
				TargetID:  *inc.ID,
				Timestamp: event.Timestamp,
			})

		case recording.SourceInput:
			if inc.ID == nil {
				continue
			}
			buf.upsert(*inc.ID, inc.TextValue(), event.Timestamp)

		case recording.SourceMutation:
			// The node map is not updated after the snapshot.
		}
	}

	return buf.flush(out)
}
