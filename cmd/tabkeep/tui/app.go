package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/output"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// AppState is the picker's screen.
type AppState int

const (
	StateLoading AppState = iota
	StateResults
	StateConfirm
	StateDeleting
	StateComplete
)

// Source loads the items to pick from and deletes a selection. Delete is
// one registry call, so the daemon journals the whole selection as a single
// operation; it reports per item and may return results in any order.
type Source interface {
	Load(ctx context.Context) ([]output.PageInfo, error)
	Delete(ctx context.Context, items []output.PageInfo) ([]types.DeleteResult, error)
}

// Options configures the picker.
type Options struct {
	Title  string
	Source Source
	DryRun bool
}

// outcome is what happened to one selected item.
type outcome struct {
	item output.PageInfo
	err  string
}

// Model is the Bubble Tea model for the picker.
type Model struct {
	state       AppState
	loadModel   LoadModel
	resultModel ResultModel
	options     Options

	ctx    context.Context
	cancel context.CancelFunc

	deleteFocused bool // confirm dialog focus; Cancel otherwise
	spinner       spinner.Model
	pending       int
	outcomes      []outcome
	freed         int64

	width  int
	height int
}

// deletedMsg carries the registry's answer to a bulk delete.
type deletedMsg struct {
	results []types.DeleteResult
	err     error
}

// NewModel returns a picker in the loading state.
func NewModel(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Title == "" {
		opts.Title = "saved pages"
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(dangerColor)

	return Model{
		state:     StateLoading,
		loadModel: NewLoadModel(opts.Title),
		options:   opts,
		ctx:       ctx,
		cancel:    cancel,
		spinner:   s,
		width:     80,
		height:    24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadModel.Init(), m.load())
}

func (m Model) load() tea.Cmd {
	ctx, src := m.ctx, m.options.Source
	return func() tea.Msg {
		items, err := src.Load(ctx)
		return LoadedMsg{Items: items, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.loadModel, _ = m.loadModel.Update(msg)
		m.resultModel.SetDimensions(msg.Width, msg.Height)

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case LoadedMsg:
		m.loadModel, _ = m.loadModel.Update(msg)
		if msg.Err == nil {
			m.state = StateResults
			m.resultModel = NewResultModel(m.options.Title, msg.Items)
			m.resultModel.SetDimensions(m.width, m.height)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		switch m.state {
		case StateLoading:
			m.loadModel, cmd = m.loadModel.Update(msg)
		case StateDeleting:
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd

	case deletedMsg:
		m.state = StateComplete
		m.outcomes = matchResults(m.resultModel.SelectedItems(), msg.results, msg.err)
		for _, o := range m.outcomes {
			if o.err == "" {
				m.freed += o.item.Size
			}
		}
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	if key == "ctrl+c" {
		m.cancel()
		return m, tea.Quit
	}

	switch m.state {
	case StateLoading:
		if key == "q" || key == "esc" {
			m.cancel()
			return m, tea.Quit
		}

	case StateResults:
		switch key {
		case "q", "esc":
			return m, tea.Quit
		case "enter":
			if m.resultModel.HasSelection() {
				m.state = StateConfirm
				m.deleteFocused = false
			}
		default:
			m.resultModel.HandleKey(key)
		}

	case StateConfirm:
		switch key {
		case "q", "esc", "n":
			m.state = StateResults
		case "left", "h":
			m.deleteFocused = false
		case "right", "l":
			m.deleteFocused = true
		case "tab":
			m.deleteFocused = !m.deleteFocused
		case "enter":
			if m.deleteFocused {
				return m.startDelete()
			}
			m.state = StateResults
		case "y":
			return m.startDelete()
		}

	case StateComplete:
		if key == "q" || key == "enter" || key == "esc" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) startDelete() (tea.Model, tea.Cmd) {
	m.state = StateDeleting
	m.outcomes, m.freed = nil, 0

	m.pending = m.resultModel.SelectedCount()
	return m, tea.Batch(m.spinner.Tick, m.deleteCmd())
}

// deleteCmd sends the selection to the source, or fakes success on a dry
// run.
func (m Model) deleteCmd() tea.Cmd {
	items := m.resultModel.SelectedItems()
	ctx, src, dryRun := m.ctx, m.options.Source, m.options.DryRun

	return func() tea.Msg {
		if dryRun {
			results := make([]types.DeleteResult, len(items))
			for i, item := range items {
				results[i] = types.DeleteResult{ID: item.ID, FilePath: item.Path, Success: true}
			}
			return deletedMsg{results: results}
		}
		results, err := src.Delete(ctx, items)
		return deletedMsg{results: results, err: err}
	}
}

// matchResults pairs each selected item with its result: records by id,
// stray files by path. A failed request fails every item, and an item the
// registry did not answer for counts as failed.
func matchResults(items []output.PageInfo, results []types.DeleteResult, reqErr error) []outcome {
	byID := make(map[string]types.DeleteResult, len(results))
	byPath := make(map[string]types.DeleteResult, len(results))
	for _, r := range results {
		if r.ID != "" {
			byID[types.NormalizeID(r.ID)] = r
		}
		if r.FilePath != "" {
			byPath[r.FilePath] = r
		}
	}

	out := make([]outcome, len(items))
	for i, item := range items {
		out[i].item = item
		if reqErr != nil {
			out[i].err = reqErr.Error()
			continue
		}
		r, ok := byID[types.NormalizeID(item.ID)]
		if item.ID == "" {
			r, ok = byPath[item.Path]
		}
		switch {
		case !ok:
			out[i].err = "no result from registry"
		case !r.Success:
			out[i].err = r.Error
		}
	}
	return out
}

func (m Model) failures() []string {
	var errs []string
	for _, o := range m.outcomes {
		if o.err != "" {
			errs = append(errs, itemLabel(o.item)+": "+o.err)
		}
	}
	return errs
}

func (m Model) View() string {
	switch m.state {
	case StateLoading:
		return m.loadModel.View()
	case StateResults:
		return m.resultModel.View()
	case StateConfirm:
		return m.renderConfirmDialog()
	case StateDeleting:
		return m.renderDeleting()
	case StateComplete:
		return m.renderComplete()
	}
	return ""
}

func (m Model) renderConfirmDialog() string {
	var content strings.Builder
	content.WriteString(dialogTitleStyle.Render("Confirm Deletion"))
	content.WriteString("\n\n")
	content.WriteString(dialogTextStyle.Render(fmt.Sprintf("Delete %d items (%s)?",
		m.resultModel.SelectedCount(), types.FormatSize(m.resultModel.SelectedSize()))))
	content.WriteString("\n")
	if m.options.DryRun {
		content.WriteString(warningTextStyle.Render("(Dry run - nothing will be deleted)"))
		content.WriteString("\n")
	}
	content.WriteString("\n")

	cancelBtn, deleteBtn := activeButtonStyle.Render("Cancel"), inactiveButtonStyle.Render("Delete")
	if m.deleteFocused {
		cancelBtn, deleteBtn = inactiveButtonStyle.Render("Cancel"), activeButtonStyle.Render("Delete")
	}
	content.WriteString(center(lipgloss.JoinHorizontal(lipgloss.Center, cancelBtn, "  ", deleteBtn), 46))

	dialog := dialogBoxStyle.Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}

func (m Model) renderDeleting() string {
	contentWidth := m.width - 4

	var b strings.Builder
	b.WriteString(titleStyle.Render("  Deleting..."))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "  %s Removing %d items (%s) from the registry",
		m.spinner.View(), m.pending, types.FormatSize(m.resultModel.SelectedSize()))
	b.WriteString("\n")

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m Model) renderComplete() string {
	contentWidth := m.width - 4
	failed := m.failures()

	var b strings.Builder
	b.WriteString(renderAppHeader(m.options.Title, len(m.outcomes), m.resultModel.SelectedSize(), m.freed))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	if m.options.DryRun {
		fmt.Fprintf(&b, "  Would have deleted: %d items\n", len(m.outcomes))
	} else {
		fmt.Fprintf(&b, "  Deleted: %d items\n", len(m.outcomes)-len(failed))
	}

	if len(failed) > 0 {
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("  Failed: %d items", len(failed))))
		b.WriteString("\n")
		const shown = 5
		for i, e := range failed {
			if i == shown {
				b.WriteString(errorTextStyle.Render(fmt.Sprintf("    ... and %d more", len(failed)-shown)))
				b.WriteString("\n")
				break
			}
			b.WriteString(errorTextStyle.Render("    - " + truncatePath(e, contentWidth-6)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(center(keyStyle.Render("[Enter]")+" "+keyDescStyle.Render("Exit"), contentWidth))
	b.WriteString("\n")

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

// State returns the current screen.
func (m Model) State() AppState {
	return m.state
}

// Run shows the picker until the user quits. A load failure is returned.
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen(), tea.WithMouseCellMotion())

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.state == StateLoading {
		return fm.loadModel.Err()
	}
	return nil
}
