package recording

import (
	"encoding/json"
	"strconv"
)

// EventType is the top-level rrweb event kind
type EventType int

const (
	EventTypeDomContentLoaded    EventType = 0
	EventTypeLoad                EventType = 1
	EventTypeFullSnapshot        EventType = 2
	EventTypeIncrementalSnapshot EventType = 3
	EventTypeMeta                EventType = 4
	EventTypeCustom              EventType = 5
	EventTypePlugin              EventType = 6
)

func (t EventType) String() string {
	switch t {
	case EventTypeDomContentLoaded:
		return "dom_content_loaded"
	case EventTypeLoad:
		return "load"
	case EventTypeFullSnapshot:
		return "full_snapshot"
	case EventTypeIncrementalSnapshot:
		return "incremental_snapshot"
	case EventTypeMeta:
		return "meta"
	case EventTypeCustom:
		return "custom"
	case EventTypePlugin:
		return "plugin"
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// IncrementalSource identifies what produced an incremental snapshot event
type IncrementalSource int

const (
	SourceMutation          IncrementalSource = 0
	SourceMouseMove         IncrementalSource = 1
	SourceMouseInteraction  IncrementalSource = 2
	SourceScroll            IncrementalSource = 3
	SourceViewportResize    IncrementalSource = 4
	SourceInput             IncrementalSource = 5
	SourceTouchMove         IncrementalSource = 6
	SourceMediaInteraction  IncrementalSource = 7
	SourceStyleSheetRule    IncrementalSource = 8
	SourceCanvasMutation    IncrementalSource = 9
	SourceFont              IncrementalSource = 10
	SourceLog               IncrementalSource = 11
	SourceDrag              IncrementalSource = 12
	SourceStyleDeclaration  IncrementalSource = 13
	SourceSelection         IncrementalSource = 14
	SourceAdoptedStyleSheet IncrementalSource = 15
)

// MouseInteractionType is the sub-kind of a mouse interaction event
type MouseInteractionType int

const (
	MouseUp     MouseInteractionType = 0
	MouseDown   MouseInteractionType = 1
	Click       MouseInteractionType = 2
	ContextMenu MouseInteractionType = 3
	DblClick    MouseInteractionType = 4
	Focus       MouseInteractionType = 5
	Blur        MouseInteractionType = 6
	TouchStart  MouseInteractionType = 7
	TouchEnd    MouseInteractionType = 9
)

// Event is a single rrweb record. Data is kept raw because its shape
// depends on Type and, for incremental snapshots, on the source.
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Incremental is the subset of incremental snapshot payload fields the
// converter reads. Fields absent from the payload stay nil.
type Incremental struct {
	Source IncrementalSource `json:"source"`
	Type   *int              `json:"type,omitempty"`
	ID     *int64            `json:"id,omitempty"`
	Text   interface{}       `json:"text,omitempty"`
	X      *float64          `json:"x,omitempty"`
	Y      *float64          `json:"y,omitempty"`
}

// DecodeIncremental decodes the payload of an incremental snapshot event.
// ok is false for other event types or undecodable payloads.
func (e Event) DecodeIncremental() (inc Incremental, ok bool) {
	if e.Type != EventTypeIncrementalSnapshot || len(e.Data) == 0 {
		return inc, false
	}
	if err := json.Unmarshal(e.Data, &inc); err != nil {
		return inc, false
	}
	return inc, true
}

// TextValue returns the input text, or "" when absent or not a string
func (inc Incremental) TextValue() string {
	if v, ok := inc.Text.(string); ok {
		return v
	}
	return ""
}

// IsClick reports whether the payload is a mouse-interaction click
func (inc Incremental) IsClick() bool {
	return inc.Source == SourceMouseInteraction && inc.Type != nil && MouseInteractionType(*inc.Type) == Click
}

// Meta is the payload of a meta event
type Meta struct {
	Href   string
	Width  int
	Height int
}

// DecodeMeta reads href/width/height from a meta event payload
func (e Event) DecodeMeta() (Meta, bool) {
	if e.Type != EventTypeMeta || len(e.Data) == 0 {
		return Meta{}, false
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(e.Data, &raw); err != nil {
		return Meta{}, false
	}
	return Meta{
		Href:   getString(raw, "href"),
		Width:  getInt(raw, "width"),
		Height: getInt(raw, "height"),
	}, true
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}
