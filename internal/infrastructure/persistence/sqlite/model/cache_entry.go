package model

type CacheEntry struct {
	Key               string `gorm:"column:key;type:text;primaryKey"`
	Value             string `gorm:"column:value;type:text;not null"`
	ExpiresAtUnixNano int64  `gorm:"column:expires_at_unix_nano;not null;default:0;index"`
	UpdatedAt         string `gorm:"column:updated_at;type:text;not null"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}
