// SPDX-License-Identifier: MPL-2.0

package issue

import "github.com/charmbracelet/glamour"

// render is a package-level seam so tests can substitute a fake renderer.
var render = func(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}

// RenderMarkdown renders a markdown remediation text for terminal display.
// If the terminal renderer cannot be constructed or fails, the raw markdown
// is returned unchanged so the instructions are never lost.
func RenderMarkdown(md string) string {
	out, err := render(md)
	if err != nil {
		return md
	}
	return out
}
