package codegen

import (
	"fmt"
	"strings"

	"github.com/gosight/gosight/scriptgen/internal/selector"
)

// renderPlaywright produces a self-contained @playwright/test file
func renderPlaywright(acts []selector.ActionWithSelector, opts Options) (string, error) {
	var sb strings.Builder

	sb.WriteString("import { test } from '@playwright/test';\n\n")
	fmt.Fprintf(&sb, "test(%s, async ({ page }) => {\n", jsDialect.quote(opts.TestName))
	if opts.StartURL != "" {
		fmt.Fprintf(&sb, "  await page.goto(%s);\n\n", jsDialect.quote(opts.StartURL))
	}
	writeBody(&sb, jsDialect, "  ", acts, opts)
	sb.WriteString("});\n")

	return sb.String(), nil
}

// renderPython produces a generic Playwright for Python sync-API script
func renderPython(acts []selector.ActionWithSelector, opts Options) (string, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n", escapeComment(opts.TestName))
	sb.WriteString("import re\n\n")
	sb.WriteString("from playwright.sync_api import Playwright, sync_playwright\n\n\n")
	sb.WriteString("def run(playwright: Playwright) -> None:\n")
	sb.WriteString("    browser = playwright.chromium.launch(headless=False)\n")
	sb.WriteString("    context = browser.new_context()\n")
	sb.WriteString("    page = context.new_page()\n")
	if opts.StartURL != "" {
		fmt.Fprintf(&sb, "    page.goto(%s)\n", pyDialect.quote(opts.StartURL))
	}
	sb.WriteString("\n")
	writeBody(&sb, pyDialect, "    ", acts, opts)
	sb.WriteString("\n")
	sb.WriteString("    context.close()\n")
	sb.WriteString("    browser.close()\n\n\n")
	sb.WriteString("with sync_playwright() as playwright:\n")
	sb.WriteString("    run(playwright)\n")

	return sb.String(), nil
}
