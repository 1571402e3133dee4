package codegen

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var jsEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`'`, `\'`,
	"`", "\\`",
	"\n", `\n`,
	"\r", `\r`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

var pyEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
)

// commentEscaper keeps arbitrary text on a single comment line
var commentEscaper = strings.NewReplacer(
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\r`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// escapeJSString escapes s for use inside a JavaScript string literal of
// any quote style.
func escapeJSString(s string) string {
	return jsEscaper.Replace(s)
}

func escapePyString(s string) string {
	return pyEscaper.Replace(s)
}

func escapeComment(s string) string {
	return commentEscaper.Replace(s)
}

// looksMasked reports whether an input value looks like a masked or
// encoded secret: longer than 20 characters and made only of letters,
// digits, '=', '+' and '/'. Letters and digits include non-ASCII ones.
func looksMasked(v string) bool {
	if utf8.RuneCountInString(v) <= 20 {
		return false
	}
	for _, r := range v {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case r == '=' || r == '+' || r == '/':
		default:
			return false
		}
	}
	return true
}
