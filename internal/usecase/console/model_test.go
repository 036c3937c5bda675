package console

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"auditcache/internal/domain/audit"
)

type stubOperations struct {
	records  map[string]audit.AuditRecord
	pending  int
	flushed  int
	swept    int64
	restored []string
}

func (s *stubOperations) Restore(_ context.Context, reference string) (audit.AuditRecord, error) {
	s.restored = append(s.restored, reference)
	if reference == "bad ref" {
		return audit.AuditRecord{}, audit.ErrInvalidReference
	}
	record, ok := s.records[reference]
	if !ok {
		return audit.AuditRecord{}, audit.ErrNotFound
	}
	return record, nil
}

func (s *stubOperations) Pending() int { return s.pending }

func (s *stubOperations) Flush(context.Context) (int, error) {
	n := s.pending
	s.flushed += n
	s.pending = 0
	return n, nil
}

func (s *stubOperations) Sweep(context.Context) (int64, error) {
	if s.swept < 0 {
		return 0, errors.New("database is locked")
	}
	return s.swept, nil
}

func typeText(t *testing.T, m tea.Model, text string) tea.Model {
	t.Helper()
	for _, r := range text {
		if r == ' ' {
			m, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

// press sends a key and runs the returned command synchronously.
func press(t *testing.T, m tea.Model, key tea.KeyType) tea.Model {
	t.Helper()
	m, cmd := m.Update(tea.KeyMsg{Type: key})
	if cmd == nil {
		return m
	}
	m, _ = m.Update(cmd())
	return m
}

func TestRestoreShowsRecord(t *testing.T) {
	ops := &stubOperations{records: map[string]audit.AuditRecord{
		"d1": {ID: "r1", DecisionID: "d1", Content: "bad word", Author: "Bob#0001", AutoMod: true, Keyword: "spam"},
	}}
	m := NewModel(context.Background(), ops, Options{})

	m = typeText(t, m, "d1")
	m = press(t, m, tea.KeyEnter)

	if len(ops.restored) != 1 || ops.restored[0] != "d1" {
		t.Fatalf("restored = %v, want [d1]", ops.restored)
	}
	view := m.View()
	for _, want := range []string{"ID: r1", "Decision: d1", "Keyword: spam", "bad word", "restored d1"} {
		if !strings.Contains(view, want) {
			t.Fatalf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestRestoreReportsMissingAndMalformed(t *testing.T) {
	ops := &stubOperations{}
	m := NewModel(context.Background(), ops, Options{})

	m = typeText(t, m, "gone")
	m = press(t, m, tea.KeyEnter)
	if view := m.View(); !strings.Contains(view, "may have expired") || !strings.Contains(view, "- no record") {
		t.Fatalf("View() after missing:\n%s", view)
	}

	m = typeText(t, m, "bad ref")
	m = press(t, m, tea.KeyEnter)
	if view := m.View(); !strings.Contains(view, "malformed reference bad ref") {
		t.Fatalf("View() after malformed:\n%s", view)
	}
}

func TestBlankInputDoesNotRestore(t *testing.T) {
	ops := &stubOperations{}
	m := NewModel(context.Background(), ops, Options{})

	m = typeText(t, m, "  ")
	m = press(t, m, tea.KeyEnter)
	if len(ops.restored) != 0 {
		t.Fatalf("restored = %v, want none", ops.restored)
	}
	if !strings.Contains(m.View(), "type a record id") {
		t.Fatalf("View() missing prompt:\n%s", m.View())
	}
}

func TestBackspaceAndClear(t *testing.T) {
	m := NewModel(context.Background(), &stubOperations{}, Options{})

	m = typeText(t, m, "abc")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if got := m.(*model).input; got != "ab" {
		t.Fatalf("input after backspace = %q, want ab", got)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlU})
	if got := m.(*model).input; got != "" {
		t.Fatalf("input after clear = %q, want empty", got)
	}
}

func TestFlushAndSweepActions(t *testing.T) {
	ops := &stubOperations{pending: 3, swept: 2}
	m := NewModel(context.Background(), ops, Options{})

	if !strings.Contains(m.View(), "pending=3") {
		t.Fatalf("View() missing pending count:\n%s", m.View())
	}

	m = press(t, m, tea.KeyCtrlF)
	if ops.flushed != 3 {
		t.Fatalf("flushed = %d, want 3", ops.flushed)
	}
	view := m.View()
	if !strings.Contains(view, "pending=0") || !strings.Contains(view, "flush done: 3 entries") {
		t.Fatalf("View() after flush:\n%s", view)
	}

	m = press(t, m, tea.KeyCtrlS)
	if !strings.Contains(m.View(), "sweep done: 2 records") {
		t.Fatalf("View() after sweep:\n%s", m.View())
	}

	ops.swept = -1
	m = press(t, m, tea.KeyCtrlS)
	if !strings.Contains(m.View(), "sweep failed: database is locked") {
		t.Fatalf("View() after failed sweep:\n%s", m.View())
	}
}

func TestActionLogIsBounded(t *testing.T) {
	ops := &stubOperations{}
	m := NewModel(context.Background(), ops, Options{})

	for i := 0; i < maxActionLines+3; i++ {
		m = press(t, m, tea.KeyCtrlF)
	}
	if got := len(m.(*model).actionLogs); got != maxActionLines {
		t.Fatalf("len(actionLogs) = %d, want %d", got, maxActionLines)
	}
}

func TestTickRefreshesPending(t *testing.T) {
	ops := &stubOperations{}
	m := NewModel(context.Background(), ops, Options{})

	ops.pending = 7
	m, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Fatalf("tick did not reschedule")
	}
	if got := m.(*model).pending; got != 7 {
		t.Fatalf("pending = %d, want 7", got)
	}
}

func TestQuitKeys(t *testing.T) {
	m := NewModel(context.Background(), &stubOperations{}, Options{})
	for _, key := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		_, cmd := m.Update(tea.KeyMsg{Type: key})
		if cmd == nil {
			t.Fatalf("key %v returned no command", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("key %v did not quit", key)
		}
	}
}
