package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// renderAppHeader renders the title line: app name, picker title, item
// count, total size and, after a delete, the space reclaimed.
func renderAppHeader(title string, count int, totalSize, freedSize int64) string {
	appName := titleStyle.Bold(true).Render("TABKEEP")
	stats := mutedTextStyle.Render(fmt.Sprintf("  %s  •  %d items  •  %s",
		title, count, types.FormatSize(totalSize)))

	header := " " + appName + stats
	if freedSize > 0 {
		freed := lipgloss.NewStyle().Foreground(successColor).Bold(true).
			Render(fmt.Sprintf("  ✓ Freed %s", types.FormatSize(freedSize)))
		header += freed
	}
	return header
}
