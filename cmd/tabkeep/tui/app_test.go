package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/output"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

type fakeSource struct {
	items   []output.PageInfo
	loadErr error
	failOn  string
	reqErr  error

	mu      sync.Mutex
	calls   int
	deleted []string
}

func (f *fakeSource) Load(context.Context) ([]output.PageInfo, error) {
	return f.items, f.loadErr
}

func (f *fakeSource) Delete(_ context.Context, items []output.PageInfo) ([]types.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.reqErr != nil {
		return nil, f.reqErr
	}

	// Answer in reverse to make sure results are matched, not zipped.
	var results []types.DeleteResult
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		res := types.DeleteResult{ID: strings.ToUpper(item.ID), FilePath: item.Path, Success: true}
		if item.Path == f.failOn {
			res.Success, res.Error = false, "permission denied"
		} else {
			f.deleted = append(f.deleted, item.Path)
		}
		results = append(results, res)
	}
	return results, nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

// confirmDelete selects everything, confirms, and runs the delete command.
func confirmDelete(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(t, m, key("a"))
	m, _ = update(t, m, key("enter"))
	m, _ = update(t, m, key("y"))
	if m.State() != StateDeleting {
		t.Fatalf("expected deleting state, got %d", m.State())
	}
	m, _ = update(t, m, m.deleteCmd()())
	return m
}

func loaded(t *testing.T, src *fakeSource, dryRun bool) Model {
	t.Helper()
	m := NewModel(Options{Title: "orphans", Source: src, DryRun: dryRun})
	msg := m.load()()
	m, _ = update(t, m, msg)
	return m
}

func TestModel_LoadAndQuit(t *testing.T) {
	src := &fakeSource{items: testItems()}
	m := NewModel(Options{Source: src})

	if m.State() != StateLoading {
		t.Fatalf("expected loading state, got %d", m.State())
	}
	if !strings.Contains(m.View(), "saved pages") {
		t.Error("expected default title in loading view")
	}

	m, _ = update(t, m, m.load()())
	if m.State() != StateResults {
		t.Fatalf("expected results state, got %d", m.State())
	}
	if len(m.resultModel.Items()) != 3 {
		t.Errorf("expected 3 items, got %d", len(m.resultModel.Items()))
	}

	_, cmd := update(t, m, key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected QuitMsg")
	}
}

func TestModel_LoadError(t *testing.T) {
	src := &fakeSource{loadErr: errors.New("daemon is not running")}
	m := NewModel(Options{Source: src})

	m, _ = update(t, m, m.load()())
	if m.State() != StateLoading {
		t.Fatalf("expected to stay in loading state, got %d", m.State())
	}
	if !strings.Contains(m.View(), "daemon is not running") {
		t.Error("expected error in view")
	}
	if m.loadModel.Err() == nil {
		t.Error("expected load error")
	}
}

func TestModel_EnterWithoutSelection(t *testing.T) {
	m := loaded(t, &fakeSource{items: testItems()}, false)

	m, _ = update(t, m, key("enter"))
	if m.State() != StateResults {
		t.Errorf("expected results state, got %d", m.State())
	}
}

func TestModel_ConfirmCancel(t *testing.T) {
	src := &fakeSource{items: testItems()}
	m := loaded(t, src, false)

	m, _ = update(t, m, key(" "))
	m, _ = update(t, m, key("enter"))
	if m.State() != StateConfirm {
		t.Fatalf("expected confirm state, got %d", m.State())
	}
	if !strings.Contains(m.View(), "Confirm Deletion") {
		t.Error("expected confirm dialog")
	}

	// Focus starts on Cancel.
	m, _ = update(t, m, key("enter"))
	if m.State() != StateResults {
		t.Errorf("expected results state after cancel, got %d", m.State())
	}
	if len(src.deleted) != 0 {
		t.Errorf("expected nothing deleted, got %v", src.deleted)
	}
}

func TestModel_DeleteFlow(t *testing.T) {
	src := &fakeSource{items: testItems(), failOn: "/snap/b.mhtml"}
	m := loaded(t, src, false)

	m, _ = update(t, m, key("a"))
	m, _ = update(t, m, key("enter"))
	m, _ = update(t, m, key("l"))
	m, cmd := update(t, m, key("enter"))
	if m.State() != StateDeleting || cmd == nil {
		t.Fatalf("expected deleting state with a command, got %d", m.State())
	}
	if !strings.Contains(m.View(), "Removing 3 items") {
		t.Errorf("unexpected deleting view: %q", m.View())
	}

	m, _ = update(t, m, m.deleteCmd()())

	if src.calls != 1 {
		t.Errorf("expected one bulk request, got %d", src.calls)
	}
	if len(src.deleted) != 2 {
		t.Errorf("expected 2 deletions, got %v", src.deleted)
	}
	failed := m.failures()
	if len(failed) != 1 || !strings.Contains(failed[0], "https://b.example") {
		t.Errorf("unexpected failures: %v", failed)
	}
	if got, want := m.freed, testItems()[0].Size+testItems()[2].Size; got != want {
		t.Errorf("freed = %d, want %d", got, want)
	}

	view := m.View()
	if !strings.Contains(view, "Deleted: 2 items") || !strings.Contains(view, "Failed: 1 items") {
		t.Errorf("unexpected completion view: %q", view)
	}
}

func TestModel_RequestFailureFailsEverything(t *testing.T) {
	src := &fakeSource{items: testItems(), reqErr: errors.New("connection refused")}
	m := confirmDelete(t, loaded(t, src, false))

	if m.State() != StateComplete {
		t.Fatalf("expected complete state, got %d", m.State())
	}
	if len(m.failures()) != 3 || m.freed != 0 {
		t.Errorf("failures = %v, freed = %d", m.failures(), m.freed)
	}
	if !strings.Contains(m.View(), "connection refused") {
		t.Error("expected request error in view")
	}
}

func TestModel_DryRun(t *testing.T) {
	src := &fakeSource{items: testItems()}
	m := loaded(t, src, true)

	m, _ = update(t, m, key(" "))
	m, _ = update(t, m, key("enter"))
	if !strings.Contains(m.View(), "Dry run") {
		t.Error("expected dry run notice")
	}
	m, _ = update(t, m, key("y"))
	m, _ = update(t, m, m.deleteCmd()())

	if src.calls != 0 {
		t.Errorf("dry run called the registry %d times", src.calls)
	}
	if !strings.Contains(m.View(), "Would have deleted: 1 items") {
		t.Error("expected dry run summary")
	}
}

func TestMatchResults(t *testing.T) {
	items := testItems()
	results := []types.DeleteResult{
		{FilePath: "/snap/stray.mhtml", Success: true},
		{ID: "A", FilePath: "/snap/a.mhtml", Success: true},
	}

	out := matchResults(items, results, nil)

	if out[0].err != "" || out[2].err != "" {
		t.Errorf("expected a and stray to succeed: %+v", out)
	}
	if out[1].err != "no result from registry" {
		t.Errorf("expected b to be unanswered, got %q", out[1].err)
	}
}
