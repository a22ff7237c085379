package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/output"
)

// LoadModel is shown while items are fetched from the daemon.
type LoadModel struct {
	spinner   spinner.Model
	title     string
	startTime time.Time
	width     int
	height    int
	done      bool
	err       error
}

// LoadedMsg carries the fetched items.
type LoadedMsg struct {
	Items []output.PageInfo
	Err   error
}

// NewLoadModel creates a loading view for the given picker title.
func NewLoadModel(title string) LoadModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return LoadModel{
		spinner:   s,
		title:     title,
		startTime: time.Now(),
		width:     80,
		height:    24,
	}
}

// Init starts the spinner.
func (m LoadModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the loading view.
func (m LoadModel) Update(msg tea.Msg) (LoadModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case LoadedMsg:
		m.done = true
		m.err = msg.Err
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the loading view.
func (m LoadModel) View() string {
	contentWidth := max(m.width-4, 40)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  tabkeep - " + m.title))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString("  " + keyStyle.Render("[q]") + " " + keyDescStyle.Render("Quit"))
	case m.done:
		b.WriteString(successTextStyle.Render("  Loaded"))
	default:
		b.WriteString(fmt.Sprintf("  %s Asking the registry... %s", m.spinner.View(),
			mutedTextStyle.Render(time.Since(m.startTime).Round(100*time.Millisecond).String())))
	}
	b.WriteString("\n")

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

// Err returns the load error, if any.
func (m LoadModel) Err() error {
	return m.err
}
