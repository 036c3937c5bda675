package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
)

const maxActionLines = 8

// Operations is what the console drives. The capture service, aggregator,
// flusher and sweeper together satisfy it; see cmd/console.go.
type Operations interface {
	Restore(ctx context.Context, reference string) (audit.AuditRecord, error)
	Pending() int
	Flush(ctx context.Context) (int, error)
	Sweep(ctx context.Context) (int64, error)
}

type Options struct {
	RefreshInterval time.Duration
}

type model struct {
	ctx             context.Context
	ops             Operations
	refreshInterval time.Duration

	input      string
	pending    int
	record     audit.AuditRecord
	hasRecord  bool
	status     string
	actionLogs []string
}

type tickMsg struct{}

type restoredMsg struct {
	reference string
	record    audit.AuditRecord
	err       error
}

type actionDoneMsg struct {
	action string
	result string
	err    error
}

func NewModel(ctx context.Context, ops Operations, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &model{
		ctx:             ctx,
		ops:             ops,
		refreshInterval: interval,
		pending:         ops.Pending(),
		status:          "ready",
	}
}

func (m *model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m *model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		m.pending = m.ops.Pending()
		return m, m.tickCmd()
	case restoredMsg:
		if msg.err != nil {
			m.hasRecord = false
			m.status = restoreStatus(msg.reference, msg.err)
			m.appendActionLog("restore", msg.reference, msg.err)
			return m, nil
		}
		m.record = msg.record
		m.hasRecord = true
		m.status = "restored " + msg.reference
		m.appendActionLog("restore", msg.reference, nil)
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
		}
		m.appendActionLog(msg.action, msg.result, msg.err)
		m.pending = m.ops.Pending()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			reference := strings.TrimSpace(m.input)
			m.input = ""
			if reference == "" {
				m.status = "type a record id or decision id first"
				return m, nil
			}
			m.status = "looking up " + reference
			return m, m.restoreCmd(reference)
		case tea.KeyBackspace:
			if runes := []rune(m.input); len(runes) > 0 {
				m.input = string(runes[:len(runes)-1])
			}
			return m, nil
		case tea.KeyCtrlF:
			m.status = "flushing"
			return m, m.flushCmd()
		case tea.KeyCtrlS:
			m.status = "sweeping"
			return m, m.sweepCmd()
		case tea.KeyCtrlU:
			m.input = ""
			return m, nil
		case tea.KeyRunes, tea.KeySpace:
			m.input += string(msg.Runes)
			return m, nil
		}
	}
	return m, nil
}

func (m *model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	inputStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Audit Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf("pending=%d refresh=%s", m.pending, m.refreshInterval)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Restore"))
	builder.WriteString("\n")
	builder.WriteString("> " + inputStyle.Render(m.input) + "_\n\n")

	builder.WriteString(sectionStyle.Render("Record"))
	builder.WriteString("\n")
	if !m.hasRecord {
		builder.WriteString(dimStyle.Render("- no record"))
		builder.WriteString("\n\n")
	} else {
		builder.WriteString(fmt.Sprintf("ID: %s\n", m.record.ID))
		if m.record.DecisionID != "" {
			builder.WriteString(fmt.Sprintf("Decision: %s\n", m.record.DecisionID))
		}
		builder.WriteString(fmt.Sprintf("Author: %s\n", m.record.Author))
		builder.WriteString(fmt.Sprintf("Channel: %s\n", firstNonEmpty(m.record.ChannelName, "-")))
		builder.WriteString(fmt.Sprintf("Captured: %s\n", m.record.Timestamp.UTC().Format(time.RFC3339)))
		if m.record.AutoMod {
			builder.WriteString(fmt.Sprintf("Keyword: %s\n", firstNonEmpty(m.record.Keyword, "-")))
			builder.WriteString(fmt.Sprintf("Rule: %s\n", firstNonEmpty(m.record.Rule, "-")))
		}
		builder.WriteString("\n" + m.record.Content + "\n\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Actions"))
	builder.WriteString("\n")
	if len(m.actionLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.actionLogs {
			builder.WriteString("- " + line + "\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: enter restore  ctrl+f flush  ctrl+s sweep  ctrl+u clear  esc quit"))
	return builder.String()
}

func (m *model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *model) restoreCmd(reference string) tea.Cmd {
	return func() tea.Msg {
		record, err := m.ops.Restore(m.ctx, reference)
		return restoredMsg{reference: reference, record: record, err: err}
	}
}

func (m *model) flushCmd() tea.Cmd {
	return func() tea.Msg {
		flushed, err := m.ops.Flush(m.ctx)
		return actionDoneMsg{action: "flush", result: fmt.Sprintf("%d entries", flushed), err: err}
	}
}

func (m *model) sweepCmd() tea.Cmd {
	return func() tea.Msg {
		removed, err := m.ops.Sweep(m.ctx)
		return actionDoneMsg{action: "sweep", result: fmt.Sprintf("%d records", removed), err: err}
	}
}

func (m *model) appendActionLog(action string, target string, err error) {
	result := "ok"
	if err != nil {
		result = "failed: " + err.Error()
	}
	line := fmt.Sprintf("%s %s %s %s", time.Now().Format("15:04:05"), action, target, result)
	m.actionLogs = append(m.actionLogs, line)
	if len(m.actionLogs) > maxActionLines {
		m.actionLogs = m.actionLogs[len(m.actionLogs)-maxActionLines:]
	}

	attrs := []slog.Attr{slog.String("action", action), slog.String("target", target)}
	if err != nil {
		logging.Warn(m.ctx, "console action failed", append(attrs, slog.Any("err", errs.Loggable(err)))...)
		return
	}
	logging.Info(m.ctx, "console action", attrs...)
}

func restoreStatus(reference string, err error) string {
	switch {
	case errors.Is(err, audit.ErrNotFound):
		return "no record for " + reference + "; it may have expired"
	case errors.Is(err, audit.ErrInvalidReference):
		return "malformed reference " + reference
	default:
		return "restore failed: " + err.Error()
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
