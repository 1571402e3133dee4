package codegen

import (
	"fmt"
	"strings"

	"github.com/gosight/gosight/scriptgen/internal/actions"
	"github.com/gosight/gosight/scriptgen/internal/selector"
)

// pauseThresholdMs is the gap between actions that gets a pause annotation
const pauseThresholdMs = 2000

// dialect holds the target-language pieces of a step
type dialect struct {
	comment string
	indent  string
	quote   func(string) string
	click   func(sel string) string
	fill    func(sel, value string) string
	// isolate wraps stmt so a failure is logged and the script continues
	isolate func(sb *strings.Builder, indent, stmt, desc string)
	// cookieBanner writes the best-effort consent dismissal block
	cookieBanner func(sb *strings.Builder, indent string)
	// empty is the statement written when a body would otherwise be empty
	empty string
}

var jsDialect = dialect{
	comment: "//",
	indent:  "  ",
	quote:   func(s string) string { return `"` + escapeJSString(s) + `"` },
	click: func(sel string) string {
		return fmt.Sprintf(`await page.locator("%s").click();`, escapeJSString(sel))
	},
	fill: func(sel, value string) string {
		return fmt.Sprintf(`await page.locator("%s").fill("%s");`, escapeJSString(sel), escapeJSString(value))
	},
	isolate: func(sb *strings.Builder, indent, stmt, desc string) {
		fmt.Fprintf(sb, "%stry {\n", indent)
		fmt.Fprintf(sb, "%s  %s\n", indent, stmt)
		fmt.Fprintf(sb, "%s} catch (err) {\n", indent)
		fmt.Fprintf(sb, "%s  console.warn(\"%s failed, continuing:\", err);\n", indent, escapeJSString(desc))
		fmt.Fprintf(sb, "%s}\n", indent)
	},
	cookieBanner: func(sb *strings.Builder, indent string) {
		fmt.Fprintf(sb, "%s// Best-effort cookie consent dismissal\n", indent)
		fmt.Fprintf(sb, "%stry {\n", indent)
		fmt.Fprintf(sb, "%s  await page.getByRole(\"button\", { name: /accept|agree|allow all|got it/i }).first().click({ timeout: 2000 });\n", indent)
		fmt.Fprintf(sb, "%s} catch (err) {\n", indent)
		fmt.Fprintf(sb, "%s  console.warn(\"Cookie consent banner not dismissed:\", err);\n", indent)
		fmt.Fprintf(sb, "%s}\n", indent)
	},
}

var pyDialect = dialect{
	comment: "#",
	indent:  "    ",
	quote:   func(s string) string { return `"` + escapePyString(s) + `"` },
	click: func(sel string) string {
		return fmt.Sprintf(`page.locator("%s").click()`, escapePyString(sel))
	},
	fill: func(sel, value string) string {
		return fmt.Sprintf(`page.locator("%s").fill("%s")`, escapePyString(sel), escapePyString(value))
	},
	isolate: func(sb *strings.Builder, indent, stmt, desc string) {
		fmt.Fprintf(sb, "%stry:\n", indent)
		fmt.Fprintf(sb, "%s    %s\n", indent, stmt)
		fmt.Fprintf(sb, "%sexcept Exception as err:\n", indent)
		fmt.Fprintf(sb, "%s    print(\"WARN: %s failed, continuing:\", err)\n", indent, escapePyString(desc))
	},
	cookieBanner: func(sb *strings.Builder, indent string) {
		fmt.Fprintf(sb, "%s# Best-effort cookie consent dismissal\n", indent)
		fmt.Fprintf(sb, "%stry:\n", indent)
		fmt.Fprintf(sb, "%s    page.get_by_role(\"button\", name=re.compile(\"accept|agree|allow all|got it\", re.IGNORECASE)).first.click(timeout=2000)\n", indent)
		fmt.Fprintf(sb, "%sexcept Exception as err:\n", indent)
		fmt.Fprintf(sb, "%s    print(\"WARN: cookie consent banner not dismissed:\", err)\n", indent)
	},
	empty: "pass",
}

// writeBody writes the optional cookie preamble followed by one step per
// action, in order.
func writeBody(sb *strings.Builder, d dialect, indent string, acts []selector.ActionWithSelector, opts Options) {
	if opts.DismissCookieBanner {
		d.cookieBanner(sb, indent)
		sb.WriteString("\n")
	}

	if len(acts) == 0 {
		fmt.Fprintf(sb, "%s%s No replayable actions were recorded\n", indent, d.comment)
		if d.empty != "" && !opts.DismissCookieBanner {
			fmt.Fprintf(sb, "%s%s\n", indent, d.empty)
		}
		return
	}

	var prev int64
	for i, a := range acts {
		if i > 0 {
			sb.WriteString("\n")
			if gap := a.Timestamp - prev; prev > 0 && gap > pauseThresholdMs {
				fmt.Fprintf(sb, "%s%s [%ds pause]\n", indent, d.comment, gap/1000)
			}
		}
		prev = a.Timestamp
		writeStep(sb, d, indent, a, opts)
	}
}

func writeStep(sb *strings.Builder, d dialect, indent string, a selector.ActionWithSelector, opts Options) {
	value, masked := stepValue(a, opts)

	fmt.Fprintf(sb, "%s%s Timestamp: %d\n", indent, d.comment, a.Timestamp)
	fmt.Fprintf(sb, "%s%s %s\n", indent, d.comment, describe(a, value, masked))

	if a.Selector.Failed() {
		fmt.Fprintf(sb, "%s%s SKIPPED: no selector could be generated (%s)\n", indent, d.comment, escapeComment(a.Selector.Reason()))
		return
	}

	sel := a.Selector.String()
	var stmt string
	switch a.Kind {
	case actions.KindClick:
		stmt = d.click(sel)
	case actions.KindInput:
		if masked {
			fmt.Fprintf(sb, "%s%s Input value seems obscured/masked, using placeholder\n", indent, d.comment)
		}
		stmt = d.fill(sel, value)
	default:
		fmt.Fprintf(sb, "%s%s SKIPPED: unsupported action kind %q\n", indent, d.comment, string(a.Kind))
		return
	}

	desc := fmt.Sprintf("%s on %s at %d", a.Kind, sel, a.Timestamp)
	d.isolate(sb, indent, stmt, desc)
}

// stepValue returns the value to emit for an input action and whether the
// recorded value was replaced by the masked placeholder.
func stepValue(a selector.ActionWithSelector, opts Options) (string, bool) {
	if a.Kind != actions.KindInput || a.Value == nil {
		return "", false
	}
	if looksMasked(*a.Value) {
		return opts.MaskedPlaceholder, true
	}
	return *a.Value, false
}

func describe(a selector.ActionWithSelector, value string, masked bool) string {
	var sb strings.Builder
	sb.WriteString("Action: ")
	sb.WriteString(kindLabel(a.Kind))
	sb.WriteString(", Selector: ")
	if a.Selector.Failed() {
		sb.WriteString("<unresolved>")
	} else {
		fmt.Fprintf(&sb, "'%s'", escapeComment(a.Selector.String()))
	}

	if a.Kind == actions.KindInput {
		if masked {
			sb.WriteString(", Value: <masked>")
		} else {
			fmt.Fprintf(&sb, ", Value: '%s'", escapeComment(value))
		}
	}
	return sb.String()
}

func kindLabel(k actions.Kind) string {
	switch k {
	case actions.KindClick:
		return "Click"
	case actions.KindInput:
		return "Input"
	}
	return string(k)
}
