package feed

import (
	"context"
	"errors"
	"log/slog"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/domain/audit"
	"auditcache/internal/ports"
)

// LogSink writes notices to the structured log.
type LogSink struct{}

var _ ports.NoticeSink = LogSink{}

func (LogSink) PublishBatch(ctx context.Context, entries []audit.BufferEntry) error {
	ctx = logging.WithAttrs(ctx, slog.String("component", "infrastructure.feed.log"))
	for _, entry := range entries {
		logging.Info(ctx, "deleted message recorded",
			slog.String("record_id", entry.RecordID),
			slog.String("author", entry.Author),
			slog.String("channel_name", entry.ChannelName),
			slog.String("content", entry.Content),
			slog.Time("timestamp", entry.Timestamp),
		)
	}
	return nil
}

func (LogSink) PublishRecord(ctx context.Context, record audit.AuditRecord) error {
	logging.Info(logging.WithAttrs(ctx, slog.String("component", "infrastructure.feed.log")),
		"automod removed a message",
		slog.String("record_id", record.ID),
		slog.String("decision_id", record.DecisionID),
		slog.String("author", record.Author),
		slog.String("content", record.Content),
		slog.String("details", record.Details),
	)
	return nil
}

// Fanout publishes to every sink and joins their errors.
type Fanout []ports.NoticeSink

var _ ports.NoticeSink = Fanout(nil)

func (f Fanout) PublishBatch(ctx context.Context, entries []audit.BufferEntry) error {
	var all []error
	for _, sink := range f {
		if err := sink.PublishBatch(ctx, entries); err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}

func (f Fanout) PublishRecord(ctx context.Context, record audit.AuditRecord) error {
	var all []error
	for _, sink := range f {
		if err := sink.PublishRecord(ctx, record); err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}
