package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"auditcache/internal/bootstrap/config"
	"auditcache/internal/domain/audit"
)

func TestRenderRecordShowsCapturedFields(t *testing.T) {
	t.Parallel()

	out := renderRecord(audit.AuditRecord{
		ID:          "0192f0c8-7b1a-7cc4-9a55-3c1f3b7e2d10",
		Content:     "hello",
		Author:      "Bob#0001",
		ChannelName: "general",
		Timestamp:   time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	})

	for _, want := range []string{"Deleted message", "hello", "Bob#0001", "general", "0192f0c8-7b1a-7cc4-9a55-3c1f3b7e2d10"} {
		if !strings.Contains(out, want) {
			t.Fatalf("renderRecord() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Decision ID") {
		t.Fatalf("renderRecord() shows empty decision id:\n%s", out)
	}
}

func TestRenderRecordShowsAutoModFields(t *testing.T) {
	t.Parallel()

	out := renderRecord(audit.AuditRecord{
		ID:         "r1",
		DecisionID: "d1",
		Content:    "bad word",
		Author:     audit.UnknownAuthor,
		AutoMod:    true,
		Keyword:    "spam",
		Details:    "Decision ID: d1\nKeyword: spam\n",
	})

	for _, want := range []string{"AutoMod removed message", "d1", "spam", "Keyword: spam"} {
		if !strings.Contains(out, want) {
			t.Fatalf("renderRecord() missing %q:\n%s", want, out)
		}
	}
}

func TestRestoreNotice(t *testing.T) {
	t.Parallel()

	if got := restoreNotice(audit.ErrNotFound); !strings.Contains(got, "expired") {
		t.Fatalf("restoreNotice(not found) = %q", got)
	}
	if got := restoreNotice(audit.ErrInvalidReference); !strings.Contains(got, "malformed") {
		t.Fatalf("restoreNotice(invalid) = %q", got)
	}
}

func TestWriteConfigFormats(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: "audit.sqlite"},
		Capture:  config.CaptureConfig{RetentionHours: 24},
	}

	var yamlOut bytes.Buffer
	if err := writeConfig(&yamlOut, cfg, "yaml"); err != nil {
		t.Fatalf("writeConfig(yaml) error = %v", err)
	}
	if !strings.Contains(yamlOut.String(), "retention_hours: 24") {
		t.Fatalf("yaml output:\n%s", yamlOut.String())
	}

	var tomlOut bytes.Buffer
	if err := writeConfig(&tomlOut, cfg, "toml"); err != nil {
		t.Fatalf("writeConfig(toml) error = %v", err)
	}
	if !strings.Contains(tomlOut.String(), "retention_hours = 24") {
		t.Fatalf("toml output:\n%s", tomlOut.String())
	}

	if err := writeConfig(&bytes.Buffer{}, cfg, "ini"); err == nil {
		t.Fatalf("writeConfig(ini) expected error")
	}
}
