// Package tui is the interactive picker for saved pages and orphans. It
// uses Bubble Tea, Lip Gloss and Bubbles.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#7D56F4")
	accentColor  = lipgloss.Color("#00D9FF")
	successColor = lipgloss.Color("#28A745")
	warningColor = lipgloss.Color("#FFC107")
	dangerColor  = lipgloss.Color("#DC3545")
	mutedColor   = lipgloss.Color("#666666")
	subtleColor  = lipgloss.Color("#444444")
	white        = lipgloss.Color("#FFFFFF")
	lightGray    = lipgloss.Color("#CCCCCC")
)

// Frame and text.
var (
	outerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	dividerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	mutedTextStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	errorTextStyle   = lipgloss.NewStyle().Foreground(dangerColor)
	successTextStyle = lipgloss.NewStyle().Foreground(successColor)
	warningTextStyle = lipgloss.NewStyle().Foreground(warningColor)
	keyStyle         = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	keyDescStyle     = lipgloss.NewStyle().Foreground(mutedColor)
)

// Snapshot rows. A row is cursor, checkbox, size column, label and an
// optional orphan tag; the detail line sits under the cursor row.
var (
	cursorStyle       = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	checkedStyle      = lipgloss.NewStyle().Bold(true).Foreground(successColor)
	uncheckedStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	normalItemStyle   = lipgloss.NewStyle().Foreground(lightGray)
	orphanTagStyle    = lipgloss.NewStyle().Foreground(warningColor)
	fileSizeStyle     = lipgloss.NewStyle().Width(sizeColumn + 1).Align(lipgloss.Right).Foreground(accentColor)
	fileDetailStyle   = lipgloss.NewStyle().Foreground(mutedColor).PaddingLeft(12)
	selectedItemStyle = lipgloss.NewStyle().
				Bold(true).
				Background(lipgloss.Color("#1A1A2E")).
				Foreground(white)
)

// The confirm dialog.
var (
	dialogBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(warningColor).
			Padding(1, 2).
			Width(50)
	dialogTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(warningColor).Align(lipgloss.Center)
	dialogTextStyle  = lipgloss.NewStyle().Foreground(white).Align(lipgloss.Center)

	activeButtonStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 2).Margin(0, 1).Background(dangerColor).Foreground(white)
	inactiveButtonStyle = lipgloss.NewStyle().Padding(0, 2).Margin(0, 1).Background(subtleColor).Foreground(lightGray)
)

// sizeColumn fits the widest size humanize prints ("1023 MiB") plus a gap.
const sizeColumn = 9

func renderDivider(width int) string {
	return dividerStyle.Render(strings.Repeat("─", max(width, 0)))
}

// truncatePath shortens a title or path to maxLen cells, keeping the tail
// since that is where the file name and timestamp live.
func truncatePath(path string, maxLen int) string {
	if lipgloss.Width(path) <= maxLen {
		return path
	}
	r := []rune(path)
	if maxLen <= 1 {
		return string(r[:max(maxLen, 0)])
	}
	return "…" + string(r[max(len(r)-(maxLen-1), 0):])
}

// padLeft and center measure printed width, so styled input lines up too.
func padLeft(s string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, s)
}

func center(s string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, s)
}
