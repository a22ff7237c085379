package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	if len(r.Profiles) > 0 {
		w.WriteString(f.formatProfiles(r.Profiles))
	}
	if len(r.Pages) > 0 || len(r.Profiles) == 0 {
		w.WriteString(f.formatPages(r.Pages))
	}

	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

// formatHeader builds the header box with the daemon address and save path.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	var parts []string

	if r.Source != "" {
		parts = append(parts, labelStyle.Render("Daemon:")+" "+valueStyle.Render(r.Source))
	}
	if r.SnapshotRoot != "" {
		parts = append(parts, labelStyle.Render("Save path:")+" "+valueStyle.Render(r.SnapshotRoot))
	}
	parts = append(parts, f.formatDaemonStatus(r.DaemonUp))

	return headerBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatDaemonStatus(up bool) string {
	if !up {
		return mutedStyle.Render("daemon: off")
	}
	return currentStyle.Render("daemon: up")
}

func (f *PrettyFormatter) formatProfiles(profiles []ProfileInfo) string {
	var sb strings.Builder

	nameWidth := 8
	for _, p := range profiles {
		nameWidth = max(nameWidth, len(p.Name))
	}

	fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
		columnStyle.Render(padRight("NAME", nameWidth)),
		columnStyle.Render("TABS"),
		columnStyle.Render("SAVED"),
		columnStyle.Render("ID"))

	for _, p := range profiles {
		name := valueStyle.Render(padRight(p.Name, nameWidth))
		if p.Current {
			name = currentStyle.Render(padRight(p.Name, nameWidth))
		} else if p.Hidden {
			name = mutedStyle.Render(padRight(p.Name, nameWidth))
		}
		line := fmt.Sprintf("  %s  %s  %s  %s", name,
			countStyle.Render(padLeft(fmt.Sprint(p.Tabs), 4)),
			countStyle.Render(padLeft(fmt.Sprint(p.Saved), 5)),
			mutedStyle.Render(p.ID))
		if flags := profileFlags(p); flags != "" {
			line += " " + flagStyle.Render("("+flags+")")
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// formatPages builds the page table with SIZE, AGE and URL columns.
func (f *PrettyFormatter) formatPages(pages []PageInfo) string {
	if len(pages) == 0 {
		return mutedStyle.Render("  No saved pages\n")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s  %s\n",
		columnStyle.Render(padLeft("SIZE", 9)),
		columnStyle.Render(padLeft("AGE", 8)),
		columnStyle.Render("PAGE"))

	for _, p := range pages {
		age := "-"
		if p.Age > 0 {
			age = formatDuration(p.Age)
		}
		label := p.URL
		if label == "" {
			label = p.Path
		}
		line := fmt.Sprintf("  %s  %s  %s",
			countStyle.Render(padLeft(p.SizeHuman, 9)),
			mutedStyle.Render(padLeft(age, 8)),
			valueStyle.Render(label))
		if p.Orphan {
			line += " " + orphanStyle.Render("(orphan)")
		}
		sb.WriteString(line + "\n")
		if p.Title != "" {
			sb.WriteString("  " + strings.Repeat(" ", 21) + mutedStyle.Render(p.Title) + "\n")
		}
	}
	return sb.String()
}

// formatFooter builds the footer box with summary information.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	var parts []string

	if len(r.Profiles) > 0 {
		parts = append(parts, labelStyle.Render("Profiles:")+" "+valueStyle.Render(fmt.Sprint(len(r.Profiles))))
	}
	if len(r.Pages) > 0 || len(r.Profiles) == 0 {
		parts = append(parts,
			labelStyle.Render("Pages:")+" "+valueStyle.Render(fmt.Sprint(len(r.Pages))),
			labelStyle.Render("Total:")+" "+countStyle.Render(humanize.IBytes(uint64(max(r.TotalSize(), 0)))))
	}
	parts = append(parts, mutedStyle.Render("Use -o plain for unformatted output"))

	return footerBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(flagStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(flagStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats an age compactly: 45s, 12m, 3h, 5d.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours())/24)
	}
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
