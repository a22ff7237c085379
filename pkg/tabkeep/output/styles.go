package output

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette so pretty output survives terminals without truecolor.
var (
	blue   = lipgloss.Color("39")
	green  = lipgloss.Color("42")
	orange = lipgloss.Color("214")
	red    = lipgloss.Color("196")
	gray   = lipgloss.Color("245")
	bright = lipgloss.Color("255")
)

// The header carries the daemon address and save path; the footer carries
// the totals.
var (
	headerBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1).
			MarginBottom(1)
	footerBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(gray).
			Padding(0, 1).
			MarginTop(1)
)

var (
	columnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(gray).
			PaddingRight(2)

	labelStyle = lipgloss.NewStyle().Foreground(gray)
	valueStyle = lipgloss.NewStyle().Foreground(bright)
	mutedStyle = lipgloss.NewStyle().Foreground(gray)
	countStyle = lipgloss.NewStyle().Bold(true).Foreground(blue)

	// currentStyle marks the focused profile and a reachable daemon.
	currentStyle = lipgloss.NewStyle().Foreground(green)
	// flagStyle marks profile flags and warnings.
	flagStyle   = lipgloss.NewStyle().Foreground(orange)
	orphanStyle = lipgloss.NewStyle().Foreground(red)
)
