package mongostore

import (
	"strings"
	"time"

	"auditcache/internal/domain/audit"
)

const (
	RecordsCollection = "deleted_messages"
	CacheCollection   = "capture_keys"
)

type recordDocument struct {
	ID          string    `bson:"_id"`
	DecisionID  string    `bson:"decision_id,omitempty"`
	EventID     string    `bson:"event_id,omitempty"`
	Content     string    `bson:"content"`
	Author      string    `bson:"author"`
	ChannelName string    `bson:"channel_name,omitempty"`
	ChannelID   string    `bson:"channel_id,omitempty"`
	Timestamp   time.Time `bson:"timestamp"`
	AutoMod     bool      `bson:"automod"`
	Keyword     string    `bson:"keyword,omitempty"`
	Rule        string    `bson:"rule,omitempty"`
	Details     string    `bson:"details,omitempty"`
}

type cacheDocument struct {
	Key       string     `bson:"_id"`
	Value     string     `bson:"value"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

// BSON dates carry milliseconds, which matches audit.NormalizeTimestamp.
func toDocument(id string, record audit.AuditRecord) recordDocument {
	return recordDocument{
		ID:          id,
		DecisionID:  strings.TrimSpace(record.DecisionID),
		EventID:     record.EventID,
		Content:     record.Content,
		Author:      record.Author,
		ChannelName: record.ChannelName,
		ChannelID:   record.ChannelID,
		Timestamp:   audit.NormalizeTimestamp(record.Timestamp),
		AutoMod:     record.AutoMod,
		Keyword:     record.Keyword,
		Rule:        record.Rule,
		Details:     record.Details,
	}
}

func fromDocument(doc recordDocument) audit.AuditRecord {
	return audit.AuditRecord{
		ID:          doc.ID,
		DecisionID:  doc.DecisionID,
		EventID:     doc.EventID,
		Content:     doc.Content,
		Author:      doc.Author,
		ChannelName: doc.ChannelName,
		ChannelID:   doc.ChannelID,
		Timestamp:   doc.Timestamp.UTC(),
		AutoMod:     doc.AutoMod,
		Keyword:     doc.Keyword,
		Rule:        doc.Rule,
		Details:     doc.Details,
	}
}
