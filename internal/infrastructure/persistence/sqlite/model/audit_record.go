package model

// AuditRecord stores the timestamp as unix nanoseconds so range deletes
// compare integers instead of formatted text.
type AuditRecord struct {
	ID                string  `gorm:"column:id;type:text;primaryKey"`
	DecisionID        *string `gorm:"column:decision_id;type:text;uniqueIndex"`
	EventID           string  `gorm:"column:event_id;type:text;not null;default:''"`
	Content           string  `gorm:"column:content;type:text;not null"`
	Author            string  `gorm:"column:author;type:text;not null"`
	ChannelName       string  `gorm:"column:channel_name;type:text;not null;default:''"`
	ChannelID         string  `gorm:"column:channel_id;type:text;not null;default:''"`
	TimestampUnixNano int64   `gorm:"column:timestamp_unix_nano;not null;index"`
	AutoMod           bool    `gorm:"column:automod;not null;default:0;index"`
	Keyword           string  `gorm:"column:keyword;type:text;not null;default:''"`
	Rule              string  `gorm:"column:rule;type:text;not null;default:''"`
	Details           string  `gorm:"column:details;type:text;not null;default:''"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}

// All lists every table owned by the SQLite backend, for AutoMigrate.
func All() []any {
	return []any{&AuditRecord{}, &CacheEntry{}, &Meta{}}
}
