package audit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// AuditRecord is one recoverable copy of removed content. Records are written
// once and never updated; they disappear only through eviction.
type AuditRecord struct {
	ID          string    `json:"id"`
	DecisionID  string    `json:"decision_id,omitempty" validate:"max=128"`
	EventID     string    `json:"event_id,omitempty" validate:"max=128"`
	Content     string    `json:"content"`
	Author      string    `json:"author" validate:"required,max=256"`
	ChannelName string    `json:"channel_name,omitempty" validate:"max=256"`
	ChannelID   string    `json:"channel_id,omitempty" validate:"max=64"`
	Timestamp   time.Time `json:"timestamp"`
	AutoMod     bool      `json:"automod"`
	Keyword     string    `json:"keyword,omitempty"`
	Rule        string    `json:"rule,omitempty"`
	Details     string    `json:"details,omitempty"`
}

// BufferEntry is the transient pre-flush copy of a captured record used for
// batched display. It is never persisted.
type BufferEntry struct {
	RecordID    string    `json:"record_id"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	ChannelName string    `json:"channel_name,omitempty"`
	ChannelID   string    `json:"channel_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	AutoMod     bool      `json:"automod"`
}

// Entry returns the buffer view of a persisted record.
func (r AuditRecord) Entry() BufferEntry {
	return BufferEntry{
		RecordID:    r.ID,
		Content:     r.Content,
		Author:      r.Author,
		ChannelName: r.ChannelName,
		ChannelID:   r.ChannelID,
		Timestamp:   r.Timestamp,
		AutoMod:     r.AutoMod,
	}
}

// Timestamps are kept at millisecond precision so every backend stores them
// without loss.
func NormalizeTimestamp(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Millisecond)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterStructValidation(validateRecordShape, AuditRecord{})
	})
	return validate
}

func validateRecordShape(sl validator.StructLevel) {
	rec, ok := sl.Current().Interface().(AuditRecord)
	if !ok {
		return
	}
	if rec.Timestamp.IsZero() {
		sl.ReportError(rec.Timestamp, "Timestamp", "timestamp", "required", "")
	}
	if strings.TrimSpace(rec.Content) == "" {
		sl.ReportError(rec.Content, "Content", "content", "required", "")
	}
	if rec.AutoMod {
		return
	}
	if rec.Keyword != "" {
		sl.ReportError(rec.Keyword, "Keyword", "keyword", "automod_only", "")
	}
	if rec.Rule != "" {
		sl.ReportError(rec.Rule, "Rule", "rule", "automod_only", "")
	}
	if rec.Details != "" {
		sl.ReportError(rec.Details, "Details", "details", "automod_only", "")
	}
	if rec.DecisionID != "" {
		sl.ReportError(rec.DecisionID, "DecisionID", "decision_id", "automod_only", "")
	}
}

// Validate checks the record against the schema rules before persistence.
func (r AuditRecord) Validate() error {
	if err := recordValidator().Struct(r); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "automod_only":
			msgs = append(msgs, field+" is only allowed on automod records")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, "; "))
}
