package dom

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gosight/gosight/scriptgen/internal/recording"
)

// DefaultMaxDepth bounds recursion over the snapshot tree
const DefaultMaxDepth = 1000

// NodeInfo is the flattened view of one serialized snapshot node
type NodeInfo struct {
	ID          int64
	TagName     string
	Attributes  map[string]string
	ParentID    *int64
	TextContent *string
}

// Attr returns the attribute value, or "" when it is not set
func (n NodeInfo) Attr(name string) string {
	return n.Attributes[name]
}

// Map indexes snapshot nodes by their rrweb id
type Map map[int64]NodeInfo

// Lookup returns the node for id
func (m Map) Lookup(id int64) (NodeInfo, bool) {
	n, ok := m[id]
	return n, ok
}

// Stats counts nodes that did not make it into the Map
type Stats struct {
	Nodes          int
	SkippedNoID    int
	SkippedTooDeep int
}

// Option configures Reconstruct
type Option func(*builder)

// WithMaxDepth overrides DefaultMaxDepth
func WithMaxDepth(depth int) Option {
	return func(b *builder) {
		if depth > 0 {
			b.maxDepth = depth
		}
	}
}

type builder struct {
	nodes    Map
	stats    Stats
	maxDepth int
}

// Reconstruct builds the node map from a full snapshot payload
// ({"node": {...}, "initialOffset": {...}}).
func Reconstruct(data json.RawMessage, opts ...Option) (Map, Stats, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, Stats{}, fmt.Errorf("%w: full snapshot payload: %v", recording.ErrMalformedInput, err)
	}

	root, ok := payload["node"].(map[string]interface{})
	if !ok {
		return nil, Stats{}, fmt.Errorf("%w: full snapshot has no root node", recording.ErrMalformedInput)
	}

	b := &builder{
		nodes:    make(Map),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.visit(root, nil, 0)
	b.stats.Nodes = len(b.nodes)

	return b.nodes, b.stats, nil
}

func (b *builder) visit(node map[string]interface{}, parentID *int64, depth int) {
	if depth >= b.maxDepth {
		b.stats.SkippedTooDeep++
		return
	}

	id, ok := getID(node)
	if !ok {
		b.stats.SkippedNoID++
		return
	}

	info := NodeInfo{
		ID:         id,
		Attributes: coerceAttributes(node["attributes"]),
		ParentID:   parentID,
	}
	if tag, ok := node["tagName"].(string); ok {
		info.TagName = tag
	}
	if text, ok := node["textContent"].(string); ok {
		info.TextContent = &text
	}
	b.nodes[id] = info

	children, _ := node["childNodes"].([]interface{})
	for _, child := range children {
		childNode, ok := child.(map[string]interface{})
		if !ok {
			continue
		}
		b.visit(childNode, &id, depth+1)
	}
}

func getID(node map[string]interface{}) (int64, bool) {
	v, ok := node["id"].(float64)
	if !ok {
		return 0, false
	}
	return int64(v), true
}

// coerceAttributes keeps string, number and boolean attribute values as
// strings and drops everything else.
func coerceAttributes(raw interface{}) map[string]string {
	attrs := make(map[string]string)
	m, ok := raw.(map[string]interface{})
	if !ok {
		return attrs
	}

	for k, v := range m {
		switch val := v.(type) {
		case string:
			attrs[k] = val
		case float64:
			attrs[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			attrs[k] = strconv.FormatBool(val)
		}
	}
	return attrs
}
