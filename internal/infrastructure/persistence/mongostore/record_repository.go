package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
	"auditcache/internal/ports"
)

type RecordRepository struct {
	coll  *mongo.Collection
	newID func() (uuid.UUID, error)
}

var _ ports.RecordStore = (*RecordRepository)(nil)

func NewRecordRepository(db *mongo.Database) *RecordRepository {
	return &RecordRepository{coll: db.Collection(RecordsCollection), newID: uuid.NewV7}
}

// EnsureIndexes creates the timestamp index used by eviction and the
// partial unique index that keeps decision ids unambiguous.
func (r *RecordRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "decision_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"decision_id": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return errs.Wrap(classify(err), "create record indexes")
	}
	return nil
}

func (r *RecordRepository) Insert(ctx context.Context, record audit.AuditRecord) (string, error) {
	id, err := r.newID()
	if err != nil {
		return "", errs.Wrap(err, "generate record id")
	}

	doc := toDocument(id.String(), record)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: %q", ports.ErrDuplicateDecisionID, doc.DecisionID)
		}
		return "", errs.Wrap(classify(err), "insert audit record")
	}
	return doc.ID, nil
}

func (r *RecordRepository) FindByID(ctx context.Context, id string) (audit.AuditRecord, error) {
	return r.findOne(ctx, bson.M{"_id": strings.TrimSpace(id)})
}

func (r *RecordRepository) FindByDecisionID(ctx context.Context, decisionID string) (audit.AuditRecord, error) {
	decisionID = strings.TrimSpace(decisionID)
	if decisionID == "" {
		return audit.AuditRecord{}, ports.ErrRecordNotFound
	}
	return r.findOne(ctx, bson.M{"decision_id": decisionID})
}

func (r *RecordRepository) findOne(ctx context.Context, filter bson.M) (audit.AuditRecord, error) {
	var doc recordDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return audit.AuditRecord{}, ports.ErrRecordNotFound
		}
		return audit.AuditRecord{}, errs.Wrap(classify(err), "query audit record")
	}
	return fromDocument(doc), nil
}

func (r *RecordRepository) DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": threshold.UTC()}})
	if err != nil {
		return 0, errs.Wrap(classify(err), "delete expired audit records")
	}
	return res.DeletedCount, nil
}

// classify marks connectivity failures as ports.ErrStorageUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, context.DeadlineExceeded) {
		return errs.Mark(err, ports.ErrStorageUnavailable)
	}
	var selErr mongo.ServerError
	if !errors.As(err, &selErr) {
		// Server selection and topology errors are not ServerErrors.
		return errs.Mark(err, ports.ErrStorageUnavailable)
	}
	return err
}
