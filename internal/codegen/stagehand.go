package codegen

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gosight/gosight/scriptgen/internal/selector"
)

const (
	// StartURLToken is replaced by the recording's initial URL
	StartURLToken = "__START_URL__"
	// ActionSequenceToken marks the line replaced by the action fragment
	ActionSequenceToken = "// __ACTION_SEQUENCE__"
)

//go:embed templates/stagehand_index.ts
var defaultStagehandTemplate string

// DefaultTemplate returns the embedded project template
func DefaultTemplate() string {
	return defaultStagehandTemplate
}

// renderStagehand fills a project template. The start URL is escaped for
// the string literal it sits in; the action token line is replaced with the
// fragment rendered at the token's indentation.
func renderStagehand(acts []selector.ActionWithSelector, opts Options) (string, error) {
	tmpl := opts.Template
	if tmpl == "" {
		tmpl = defaultStagehandTemplate
	}
	if !strings.Contains(tmpl, StartURLToken) {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidTemplate, StartURLToken)
	}

	tmpl = strings.ReplaceAll(tmpl, StartURLToken, escapeJSString(opts.StartURL))

	lines := strings.Split(tmpl, "\n")
	replaced := false
	for i, line := range lines {
		if strings.TrimSpace(line) != ActionSequenceToken {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]

		var sb strings.Builder
		writeBody(&sb, jsDialect, indent, acts, opts)
		lines[i] = strings.TrimSuffix(sb.String(), "\n")
		replaced = true
		break
	}
	if !replaced {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidTemplate, ActionSequenceToken)
	}

	return strings.Join(lines, "\n"), nil
}
