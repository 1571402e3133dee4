// Package codegen renders selector-annotated actions as browser automation
// code. Every target shares the same per-action policy: a descriptive
// comment, a skip comment for unresolved selectors, fault-isolated
// statements and masking of values that look obscured.
package codegen

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gosight/gosight/scriptgen/internal/selector"
)

// Target selects the final rendering stage
type Target string

const (
	TargetFragment   Target = "fragment"
	TargetPlaywright Target = "playwright"
	TargetStagehand  Target = "stagehand"
	TargetPython     Target = "python"
)

// DefaultMaskedPlaceholder replaces input values that look masked
const DefaultMaskedPlaceholder = "TODO: Add realistic test data"

// DefaultTestName names the generated Playwright test
const DefaultTestName = "Generated from rrweb recording"

var (
	// ErrUnknownTarget is returned for a Target with no renderer
	ErrUnknownTarget = errors.New("unknown generation target")
	// ErrInvalidTemplate is returned when a project template lacks a placeholder token
	ErrInvalidTemplate = errors.New("invalid project template")
)

// Options controls rendering
type Options struct {
	Target              Target
	StartURL            string
	TestName            string
	DismissCookieBanner bool
	MaskedPlaceholder   string
	// Template overrides the embedded project template (stagehand target only)
	Template string
}

func (o Options) withDefaults() Options {
	if o.Target == "" {
		o.Target = TargetPlaywright
	}
	if o.TestName == "" {
		o.TestName = DefaultTestName
	}
	if o.MaskedPlaceholder == "" {
		o.MaskedPlaceholder = DefaultMaskedPlaceholder
	}
	return o
}

// Renderer is a final rendering stage
type Renderer interface {
	Render(acts []selector.ActionWithSelector, opts Options) (string, error)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(acts []selector.ActionWithSelector, opts Options) (string, error)

// Render calls f
func (f RendererFunc) Render(acts []selector.ActionWithSelector, opts Options) (string, error) {
	return f(acts, opts)
}

var renderers = map[Target]Renderer{
	TargetFragment:   RendererFunc(renderFragment),
	TargetPlaywright: RendererFunc(renderPlaywright),
	TargetStagehand:  RendererFunc(renderStagehand),
	TargetPython:     RendererFunc(renderPython),
}

// Targets lists the registered targets in name order
func Targets() []Target {
	out := make([]Target, 0, len(renderers))
	for t := range renderers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseTarget validates a target name. An empty name selects the
// Playwright test target.
func ParseTarget(name string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(name)))
	if t == "" {
		return TargetPlaywright, nil
	}
	if _, ok := renderers[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return t, nil
}

// Generate renders acts in recording order for opts.Target
func Generate(acts []selector.ActionWithSelector, opts Options) (string, error) {
	opts = opts.withDefaults()

	r, ok := renderers[opts.Target]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, opts.Target)
	}
	return r.Render(acts, opts)
}

// renderFragment emits only the annotated action lines, indented for a
// function body, so they can be pasted into an existing scaffold.
func renderFragment(acts []selector.ActionWithSelector, opts Options) (string, error) {
	var sb strings.Builder
	writeBody(&sb, jsDialect, "  ", acts, opts)
	return sb.String(), nil
}
