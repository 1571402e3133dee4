package selector

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gosight/gosight/scriptgen/internal/actions"
	"github.com/gosight/gosight/scriptgen/internal/dom"
)

// unresolvedPrefix marks a Selector that could not be generated. It is not
// valid CSS, so it can never collide with a real selector.
const unresolvedPrefix = "__unresolved__:"

// Selector is a CSS selector or an unresolved marker carrying a reason
type Selector string

// Unresolved builds the failure form of a Selector
func Unresolved(reason string) Selector {
	return Selector(unresolvedPrefix + reason)
}

// Failed reports whether s is an unresolved marker
func (s Selector) Failed() bool {
	return strings.HasPrefix(string(s), unresolvedPrefix)
}

// Reason returns the failure reason, or "" for a real selector
func (s Selector) Reason() string {
	if !s.Failed() {
		return ""
	}
	return strings.TrimPrefix(string(s), unresolvedPrefix)
}

func (s Selector) String() string {
	return string(s)
}

// Strategy is one step of the selector cascade
type Strategy struct {
	Name   string
	Match  func(dom.NodeInfo) bool
	Format func(dom.NodeInfo) string
}

// strategies is evaluated in order; the first match wins
var strategies = []Strategy{
	{
		Name:   "id",
		Match:  func(n dom.NodeInfo) bool { return n.Attr("id") != "" && !hasSpace(n.Attr("id")) },
		Format: func(n dom.NodeInfo) string { return "#" + n.Attr("id") },
	},
	{
		Name:   "id-attribute",
		Match:  func(n dom.NodeInfo) bool { return n.Attr("id") != "" },
		Format: func(n dom.NodeInfo) string { return attrEquals("id", n.Attr("id")) },
	},
	attrStrategy("data-testid"),
	attrStrategy("data-cy"),
	attrStrategy("name"),
	{
		Name:   "class",
		Match:  func(n dom.NodeInfo) bool { return len(strings.Fields(n.Attr("class"))) > 0 },
		Format: formatClass,
	},
}

func attrStrategy(attr string) Strategy {
	return Strategy{
		Name:   attr,
		Match:  func(n dom.NodeInfo) bool { return n.Attr(attr) != "" },
		Format: func(n dom.NodeInfo) string { return attrEquals(attr, n.Attr(attr)) },
	}
}

// Strategies returns the cascade names in priority order
func Strategies() []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name
	}
	return names
}

// Synthesize returns the selector for node using the first matching strategy
func Synthesize(node dom.NodeInfo) Selector {
	for _, s := range strategies {
		if s.Match(node) {
			return Selector(s.Format(node))
		}
	}

	tag := node.TagName
	if tag == "" {
		tag = "unknown"
	}
	return Unresolved(tag)
}

// ActionWithSelector pairs an action with the selector for its target
type ActionWithSelector struct {
	actions.Action
	Selector Selector
}

// Resolve looks up each action's target and synthesizes its selector.
// Targets missing from the map get an unresolved selector.
func Resolve(nodes dom.Map, acts []actions.Action) []ActionWithSelector {
	out := make([]ActionWithSelector, 0, len(acts))
	for _, a := range acts {
		node, ok := nodes.Lookup(a.TargetID)
		if !ok {
			out = append(out, ActionWithSelector{
				Action:   a,
				Selector: Unresolved(fmt.Sprintf("node not found for id `%d`", a.TargetID)),
			})
			continue
		}
		out = append(out, ActionWithSelector{Action: a, Selector: Synthesize(node)})
	}
	return out
}

// attrEquals escapes embedded double quotes only. Other CSS special
// characters in the value are passed through unchanged.
func attrEquals(attr, value string) string {
	return fmt.Sprintf(`[%s="%s"]`, attr, strings.ReplaceAll(value, `"`, `\"`))
}

func formatClass(n dom.NodeInfo) string {
	token := strings.Fields(n.Attr("class"))[0]
	token = strings.NewReplacer(":", `\:`, ".", `\.`).Replace(token)

	tag := n.TagName
	if tag == "" {
		tag = "*"
	}
	return tag + "." + token
}

func hasSpace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}
