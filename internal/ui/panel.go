package ui

import (
	"strings"

	"github.com/nhle/attachdl/internal/theme"
)

// RenderPanel draws a bordered panel of the given outer size with a
// title line above body. A zero height lets the panel grow with its
// content.
func RenderPanel(title, body string, width, height int) string {
	content := theme.TitleStyle.Render(title) + "\n" + strings.TrimRight(body, "\n")

	style := theme.PanelStyle.Width(max(0, width-2))
	if height > 0 {
		style = style.Height(max(0, height-2))
	}
	return style.Render(content)
}
