package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/output"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// ResultModel is the selectable list of pages.
type ResultModel struct {
	title    string
	items    []output.PageInfo
	cursor   int
	selected map[int]bool
	offset   int // scroll offset
	width    int
	height   int
}

// NewResultModel creates a list over items.
func NewResultModel(title string, items []output.PageInfo) ResultModel {
	return ResultModel{
		title:    title,
		items:    items,
		selected: make(map[int]bool),
		width:    80,
		height:   24,
	}
}

// Init initializes the result model.
func (m ResultModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the result model.
func (m ResultModel) Update(msg tea.Msg) (ResultModel, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

// HandleKey handles key input for the result model.
func (m *ResultModel) HandleKey(key string) tea.Cmd {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.ensureVisible()
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
			m.ensureVisible()
		}

	case " ":
		m.Toggle(m.cursor)

	case "a":
		m.SelectAll()

	case "n":
		m.SelectNone()

	case "home", "g":
		m.cursor = 0
		m.offset = 0

	case "end", "G":
		if len(m.items) > 0 {
			m.cursor = len(m.items) - 1
			m.ensureVisible()
		}

	case "pgup":
		m.cursor = max(m.cursor-m.visibleRows(), 0)
		m.ensureVisible()

	case "pgdown":
		m.cursor = max(min(m.cursor+m.visibleRows(), len(m.items)-1), 0)
		m.ensureVisible()
	}

	return nil
}

// View renders the result model.
func (m ResultModel) View() string {
	if len(m.items) == 0 {
		return m.renderEmpty()
	}

	contentWidth := max(m.width-4, 60)

	var b strings.Builder
	b.WriteString(renderAppHeader(m.title, len(m.items), m.TotalSize(), 0))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")
	b.WriteString(m.renderList(contentWidth))
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")
	b.WriteString(m.renderFooter(contentWidth))

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m ResultModel) renderEmpty() string {
	contentWidth := m.width - 4

	var b strings.Builder
	b.WriteString(renderAppHeader(m.title, 0, 0, 0))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")
	b.WriteString(center(mutedTextStyle.Render("Nothing to clean up."), contentWidth))
	b.WriteString("\n\n")
	b.WriteString(center(keyStyle.Render("[q]")+" "+keyDescStyle.Render("Quit"), contentWidth))
	b.WriteString("\n")

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m ResultModel) renderHelpBar() string {
	hints := []struct {
		key  string
		desc string
	}{
		{"Space", "Toggle"},
		{"a", "All"},
		{"n", "None"},
		{"Enter", "Delete"},
		{"q", "Quit"},
	}

	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, keyStyle.Render("["+h.key+"]")+" "+keyDescStyle.Render(h.desc))
	}
	return "  " + strings.Join(parts, "  ")
}

// renderList renders the visible window of items. The cursor row gets a
// detail line beneath it.
func (m ResultModel) renderList(width int) string {
	var b strings.Builder

	visibleRows := m.visibleRows()
	labelWidth := width - 18

	lines := 0
	for i := m.offset; i < m.offset+visibleRows && i < len(m.items); i++ {
		item := m.items[i]
		isCursor := i == m.cursor

		b.WriteString(m.renderLine(item, m.selected[i], isCursor, labelWidth))
		b.WriteString("\n")
		lines++

		if isCursor {
			b.WriteString(m.renderDetails(item, width))
			b.WriteString("\n")
			lines++
		}
	}
	for lines < visibleRows*2 {
		b.WriteString("\n")
		lines++
	}

	return b.String()
}

func (m ResultModel) renderLine(item output.PageInfo, isSelected, isCursor bool, labelWidth int) string {
	checkbox := uncheckedStyle.Render("[ ]")
	if isSelected {
		checkbox = checkedStyle.Render("[x]")
	}

	size := fileSizeStyle.Render(padLeft(types.FormatSize(item.Size), sizeColumn))

	cursor := " "
	if isCursor {
		cursor = cursorStyle.Render(">")
	}

	label := itemLabel(item)
	if item.Orphan {
		label = truncatePath(label, labelWidth-9) + " " + orphanTagStyle.Render(orphanKind(item))
	} else {
		label = truncatePath(label, labelWidth)
	}

	line := fmt.Sprintf("  %s %s %s  %s", checkbox, size, cursor, label)
	if isCursor {
		return selectedItemStyle.Width(labelWidth + 20).Render(line)
	}
	return normalItemStyle.Render(line)
}

func (m ResultModel) renderDetails(item output.PageInfo, width int) string {
	var parts []string
	if item.Title != "" {
		parts = append(parts, item.Title)
	}
	if !item.SavedAt.IsZero() {
		parts = append(parts, "Saved: "+item.SavedAt.Local().Format("2006-01-02 15:04"))
	}
	if item.URL != "" && item.Path != "" {
		parts = append(parts, truncatePath(item.Path, max(width/2, 20)))
	}
	if len(parts) == 0 {
		parts = append(parts, "No index record")
	}
	return fileDetailStyle.Render(strings.Join(parts, "  "))
}

func (m ResultModel) renderFooter(width int) string {
	left := fmt.Sprintf("  Selected: %d items (%s)", m.SelectedCount(), types.FormatSize(m.SelectedSize()))
	right := mutedTextStyle.Render("[↑↓] Navigate")

	spacing := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return left + strings.Repeat(" ", spacing) + right
}

// itemLabel is the URL for indexed pages and the path for stray files.
func itemLabel(item output.PageInfo) string {
	if item.URL != "" {
		return item.URL
	}
	return item.Path
}

func orphanKind(item output.PageInfo) string {
	if item.ID != "" {
		return "[missing]"
	}
	return "[stray]"
}

// visibleRows returns how many items fit; each takes up to two lines.
func (m ResultModel) visibleRows() int {
	return max(m.height-12, 5) / 2
}

// ensureVisible adjusts offset to keep cursor visible.
func (m *ResultModel) ensureVisible() {
	visibleRows := m.visibleRows()

	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+visibleRows {
		m.offset = m.cursor - visibleRows + 1
	}
	m.offset = max(m.offset, 0)
}

// Toggle toggles selection of the item at index.
func (m *ResultModel) Toggle(index int) {
	if index < 0 || index >= len(m.items) {
		return
	}
	if m.selected[index] {
		delete(m.selected, index)
	} else {
		m.selected[index] = true
	}
}

// SelectAll selects every item.
func (m *ResultModel) SelectAll() {
	for i := range m.items {
		m.selected[i] = true
	}
}

// SelectNone clears the selection.
func (m *ResultModel) SelectNone() {
	m.selected = make(map[int]bool)
}

// SelectedItems returns the selected items in list order.
func (m ResultModel) SelectedItems() []output.PageInfo {
	idx := make([]int, 0, len(m.selected))
	for i := range m.selected {
		if i < len(m.items) {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)

	out := make([]output.PageInfo, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.items[i])
	}
	return out
}

// SelectedSize returns the total size of the selection.
func (m ResultModel) SelectedSize() int64 {
	var total int64
	for i := range m.selected {
		if i < len(m.items) {
			total += m.items[i].Size
		}
	}
	return total
}

// SelectedCount returns the number of selected items.
func (m ResultModel) SelectedCount() int {
	return len(m.selected)
}

// TotalSize returns the total size of all items.
func (m ResultModel) TotalSize() int64 {
	var total int64
	for _, it := range m.items {
		total += it.Size
	}
	return total
}

// Items returns the listed items.
func (m ResultModel) Items() []output.PageInfo {
	return m.items
}

// Cursor returns the current cursor position.
func (m ResultModel) Cursor() int {
	return m.cursor
}

// HasSelection reports whether anything is selected.
func (m ResultModel) HasSelection() bool {
	return len(m.selected) > 0
}

// SetDimensions updates the width and height.
func (m *ResultModel) SetDimensions(width, height int) {
	m.width = width
	m.height = height
}
