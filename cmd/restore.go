package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"auditcache/internal/bootstrap"
	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <reference>",
	Short: "Restore a removed message by record id or AutoMod decision id",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, rt *bootstrap.Runtime) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		reference := cmd.Flags().Arg(0)
		asJSON, _ := cmd.Flags().GetBool("json")

		record, err := rt.Service.Restore(ctx, reference)
		if err != nil {
			if notice := restoreNotice(err); notice != "" {
				if _, writeErr := fmt.Fprintln(cmd.OutOrStdout(), notice); writeErr != nil {
					return errs.Wrap(writeErr, "write restore output")
				}
			}
			return errs.Wrap(err, "restore")
		}

		var out string
		if asJSON {
			raw, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return errs.Wrap(err, "marshal record")
			}
			out = string(raw)
		} else {
			out = renderRecord(record)
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), out); err != nil {
			return errs.Wrap(err, "write restore output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().Bool("json", false, "Print the record as JSON")
}

func restoreNotice(err error) string {
	switch {
	case errors.Is(err, audit.ErrNotFound):
		return "No record found for that reference. It may have expired."
	case errors.Is(err, audit.ErrInvalidReference):
		return "That reference is malformed. Check it for typos."
	default:
		return ""
	}
}

func renderRecord(record audit.AuditRecord) string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	contentStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1)

	title := "Deleted message"
	if record.AutoMod {
		title = "AutoMod removed message"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(contentStyle.Render(record.Content))
	b.WriteString("\n")

	row := func(label string, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label+":") + " " + value + "\n")
	}
	row("Author", record.Author)
	row("Channel", record.ChannelName)
	row("Decision ID", record.DecisionID)
	row("Keyword", record.Keyword)
	row("Rule", record.Rule)
	if record.Details != "" {
		b.WriteString(labelStyle.Render("Details:") + "\n" + strings.TrimRight(record.Details, "\n") + "\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("record %s · captured %s", record.ID, record.Timestamp.UTC().Format(time.RFC3339))))
	return b.String()
}
