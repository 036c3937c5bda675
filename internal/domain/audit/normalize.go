package audit

import (
	"strings"
	"time"
)

const (
	UnknownAuthor  = "unknown"
	EmptyContent   = "(no content)"
	keywordMarker  = "keyword"
	ruleMarker     = "rule"
	detailsLineSep = "\n"
)

// NotificationField is one named field of a moderation notification, in the
// order the upstream notification lists them.
type NotificationField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ModerationNotification is the raw AutoMod notice as delivered by the
// gateway.
type ModerationNotification struct {
	ChannelID   string              `json:"channel_id"`
	AuthorLabel string              `json:"author_label,omitempty"`
	Description string              `json:"description,omitempty"`
	Fields      []NotificationField `json:"fields"`
}

// Normalize turns a moderation notification into an automod AuditRecord
// candidate. The decision id is taken from the first field by position; the
// upstream notification format puts it there and nothing in the field name
// identifies it reliably.
func Normalize(n ModerationNotification, now time.Time) (AuditRecord, error) {
	description := strings.TrimSpace(n.Description)
	if description == "" && !hasFieldValue(n.Fields) {
		return AuditRecord{}, ErrMissingContent
	}
	if len(n.Fields) == 0 {
		return AuditRecord{}, ErrMissingDecisionID
	}
	decisionID := strings.TrimSpace(n.Fields[0].Value)
	if decisionID == "" {
		return AuditRecord{}, ErrMissingDecisionID
	}
	if !ValidDecisionID(decisionID) {
		return AuditRecord{}, ErrInvalidDecisionID
	}

	author := strings.TrimSpace(n.AuthorLabel)
	if author == "" {
		author = UnknownAuthor
	}
	content := description
	if content == "" {
		content = EmptyContent
	}

	return AuditRecord{
		DecisionID: decisionID,
		Content:    content,
		Author:     author,
		ChannelID:  strings.TrimSpace(n.ChannelID),
		Timestamp:  NormalizeTimestamp(now),
		AutoMod:    true,
		Keyword:    firstFieldValue(n.Fields, keywordMarker),
		Rule:       firstFieldValue(n.Fields, ruleMarker),
		Details:    renderFields(n.Fields),
	}, nil
}

func hasFieldValue(fields []NotificationField) bool {
	for _, f := range fields {
		if strings.TrimSpace(f.Value) != "" {
			return true
		}
	}
	return false
}

func firstFieldValue(fields []NotificationField, marker string) string {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.Name), marker) {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}

func renderFields(fields []NotificationField) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(strings.TrimSpace(f.Name))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(f.Value))
		b.WriteString(detailsLineSep)
	}
	return b.String()
}
