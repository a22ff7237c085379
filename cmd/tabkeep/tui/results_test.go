package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/output"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

func testItems() []output.PageInfo {
	return []output.PageInfo{
		{ID: "a", URL: "https://a.example", Path: "/snap/a.mhtml", Size: 100 * types.KiB},
		{ID: "b", URL: "https://b.example", Path: "/snap/b.mhtml", Size: 200 * types.KiB},
		{Path: "/snap/stray.mhtml", Size: 300 * types.KiB, Orphan: true},
	}
}

func TestNewResultModel(t *testing.T) {
	m := NewResultModel("pages", testItems())

	if len(m.Items()) != 3 {
		t.Errorf("expected 3 items, got %d", len(m.Items()))
	}
	if m.Cursor() != 0 {
		t.Errorf("expected cursor at 0, got %d", m.Cursor())
	}
	if m.HasSelection() {
		t.Error("expected no selection initially")
	}
}

func TestResultModelToggle(t *testing.T) {
	m := NewResultModel("pages", testItems())

	m.Toggle(0)
	if !m.selected[0] {
		t.Error("expected item 0 to be selected")
	}
	if m.SelectedCount() != 1 {
		t.Errorf("expected 1 selected, got %d", m.SelectedCount())
	}

	m.Toggle(0)
	if m.selected[0] {
		t.Error("expected item 0 to be deselected")
	}

	// Out of range is ignored.
	m.Toggle(-1)
	m.Toggle(10)
	if m.SelectedCount() != 0 {
		t.Errorf("expected 0 selected, got %d", m.SelectedCount())
	}
}

func TestResultModelSelectAllNone(t *testing.T) {
	m := NewResultModel("pages", testItems())

	m.SelectAll()
	if m.SelectedCount() != 3 {
		t.Errorf("expected 3 selected, got %d", m.SelectedCount())
	}

	m.SelectNone()
	if m.HasSelection() {
		t.Error("expected no selection after SelectNone")
	}
}

func TestResultModelSizes(t *testing.T) {
	m := NewResultModel("pages", testItems())
	m.Toggle(0)
	m.Toggle(2)

	if got, want := m.SelectedSize(), int64(400*types.KiB); got != want {
		t.Errorf("SelectedSize() = %d, want %d", got, want)
	}
	if got, want := m.TotalSize(), int64(600*types.KiB); got != want {
		t.Errorf("TotalSize() = %d, want %d", got, want)
	}
}

func TestResultModelSelectedItemsOrder(t *testing.T) {
	m := NewResultModel("pages", testItems())
	m.Toggle(2)
	m.Toggle(0)

	got := m.SelectedItems()
	if len(got) != 2 {
		t.Fatalf("expected 2 selected items, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].Path != "/snap/stray.mhtml" {
		t.Errorf("unexpected selection order: %+v", got)
	}
}

func TestResultModelHandleKey(t *testing.T) {
	m := NewResultModel("pages", testItems())

	m.HandleKey("down")
	if m.Cursor() != 1 {
		t.Errorf("expected cursor at 1, got %d", m.Cursor())
	}
	m.HandleKey("j")
	if m.Cursor() != 2 {
		t.Errorf("expected cursor at 2, got %d", m.Cursor())
	}
	m.HandleKey("k")
	m.HandleKey("up")
	if m.Cursor() != 0 {
		t.Errorf("expected cursor at 0, got %d", m.Cursor())
	}

	m.HandleKey(" ")
	if !m.selected[0] {
		t.Error("expected item 0 to be selected after space")
	}
	m.HandleKey("a")
	if m.SelectedCount() != 3 {
		t.Errorf("expected 3 selected after 'a', got %d", m.SelectedCount())
	}
	m.HandleKey("n")
	if m.SelectedCount() != 0 {
		t.Errorf("expected 0 selected after 'n', got %d", m.SelectedCount())
	}

	m.HandleKey("G")
	if m.Cursor() != 2 {
		t.Errorf("expected cursor at end, got %d", m.Cursor())
	}
	m.HandleKey("g")
	if m.Cursor() != 0 {
		t.Errorf("expected cursor at start, got %d", m.Cursor())
	}
}

func TestResultModelBoundaryNavigation(t *testing.T) {
	m := NewResultModel("pages", testItems()[:2])

	m.HandleKey("up")
	if m.Cursor() != 0 {
		t.Errorf("expected cursor at 0 (boundary), got %d", m.Cursor())
	}

	m.HandleKey("down")
	m.HandleKey("down")
	m.HandleKey("pgdown")
	if m.Cursor() != 1 {
		t.Errorf("expected cursor at 1 (boundary), got %d", m.Cursor())
	}
}

func TestResultModelEmpty(t *testing.T) {
	m := NewResultModel("orphans", nil)
	m.SetDimensions(80, 24)

	m.HandleKey("down")
	m.HandleKey(" ")
	m.HandleKey("pgdown")
	m.HandleKey("G")

	if m.HasSelection() || m.TotalSize() != 0 {
		t.Error("expected empty model to stay empty")
	}
	if view := m.View(); !strings.Contains(view, "Nothing to clean up.") {
		t.Errorf("expected empty message, got %q", view)
	}
}

func TestResultModelView(t *testing.T) {
	items := testItems()
	items[0].Title = "Page A"
	items[0].SavedAt = time.Now()

	m := NewResultModel("orphans", items)
	m.SetDimensions(120, 30)

	view := m.View()
	if !strings.Contains(view, "https://a.example") {
		t.Error("expected URL in view")
	}
	if !strings.Contains(view, "[stray]") {
		t.Error("expected stray tag in view")
	}
	if !strings.Contains(view, "Page A") {
		t.Error("expected cursor detail line in view")
	}
}

func TestItemLabelAndOrphanKind(t *testing.T) {
	rec := output.PageInfo{ID: "x", URL: "https://x", Path: "/p", Orphan: true}
	stray := output.PageInfo{Path: "/p", Orphan: true}

	if itemLabel(rec) != "https://x" || itemLabel(stray) != "/p" {
		t.Error("unexpected labels")
	}
	if orphanKind(rec) != "[missing]" || orphanKind(stray) != "[stray]" {
		t.Error("unexpected orphan kinds")
	}
}
