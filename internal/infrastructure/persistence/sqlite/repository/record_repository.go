package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
	"auditcache/internal/infrastructure/persistence/sqlite/model"
	"auditcache/internal/ports"
)

type RecordRepository struct {
	db    *gorm.DB
	newID func() (uuid.UUID, error)
}

var _ ports.RecordStore = (*RecordRepository)(nil)

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db, newID: uuid.NewV7}
}

func (r *RecordRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *RecordRepository) Insert(ctx context.Context, record audit.AuditRecord) (string, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return "", err
	}

	id, err := r.newID()
	if err != nil {
		return "", errs.Wrap(err, "generate record id")
	}

	row := toRow(record)
	row.ID = id.String()
	if err := db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %q", ports.ErrDuplicateDecisionID, record.DecisionID)
		}
		return "", errs.Wrap(errs.Mark(err, ports.ErrStorageUnavailable), "insert audit record")
	}
	return row.ID, nil
}

func (r *RecordRepository) FindByID(ctx context.Context, id string) (audit.AuditRecord, error) {
	return r.findOne(ctx, "id = ?", strings.TrimSpace(id))
}

func (r *RecordRepository) FindByDecisionID(ctx context.Context, decisionID string) (audit.AuditRecord, error) {
	decisionID = strings.TrimSpace(decisionID)
	if decisionID == "" {
		return audit.AuditRecord{}, ports.ErrRecordNotFound
	}
	return r.findOne(ctx, "decision_id = ?", decisionID)
}

func (r *RecordRepository) findOne(ctx context.Context, query string, arg string) (audit.AuditRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return audit.AuditRecord{}, err
	}

	var row model.AuditRecord
	if err := db.Where(query, arg).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return audit.AuditRecord{}, ports.ErrRecordNotFound
		}
		return audit.AuditRecord{}, errs.Wrap(errs.Mark(err, ports.ErrStorageUnavailable), "query audit record")
	}
	return fromRow(row), nil
}

func (r *RecordRepository) DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("timestamp_unix_nano < ?", threshold.UTC().UnixNano()).Delete(&model.AuditRecord{})
	if result.Error != nil {
		return 0, errs.Wrap(errs.Mark(result.Error, ports.ErrStorageUnavailable), "delete expired audit records")
	}
	return result.RowsAffected, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toRow(record audit.AuditRecord) model.AuditRecord {
	var decisionID *string
	if trimmed := strings.TrimSpace(record.DecisionID); trimmed != "" {
		decisionID = &trimmed
	}
	return model.AuditRecord{
		DecisionID:        decisionID,
		EventID:           record.EventID,
		Content:           record.Content,
		Author:            record.Author,
		ChannelName:       record.ChannelName,
		ChannelID:         record.ChannelID,
		TimestampUnixNano: record.Timestamp.UTC().UnixNano(),
		AutoMod:           record.AutoMod,
		Keyword:           record.Keyword,
		Rule:              record.Rule,
		Details:           record.Details,
	}
}

func fromRow(row model.AuditRecord) audit.AuditRecord {
	rec := audit.AuditRecord{
		ID:          row.ID,
		EventID:     row.EventID,
		Content:     row.Content,
		Author:      row.Author,
		ChannelName: row.ChannelName,
		ChannelID:   row.ChannelID,
		Timestamp:   time.Unix(0, row.TimestampUnixNano).UTC(),
		AutoMod:     row.AutoMod,
		Keyword:     row.Keyword,
		Rule:        row.Rule,
		Details:     row.Details,
	}
	if row.DecisionID != nil {
		rec.DecisionID = *row.DecisionID
	}
	return rec
}
