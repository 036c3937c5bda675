package capture

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
	"auditcache/internal/ports"
)

var ErrModerationDisabled = errors.New("moderation ingestion is disabled")

const (
	ReasonRecorded          = "recorded"
	ReasonIgnoredRole       = "ignored_role"
	ReasonEmptyContent      = "empty_content"
	ReasonDuplicateEvent    = "duplicate_event"
	ReasonDuplicateDecision = "duplicate_decision"
	ReasonChannelNotWatched = "channel_not_watched"

	captureKeyPrefix = "capture:"
)

type Config struct {
	Retention time.Duration
	// Immediate publishes each captured entry to the sink instead of
	// buffering it for the next flush.
	Immediate        bool
	IgnoredRoleIDs   audit.RoleSet
	AutoModEnabled   bool
	AutoModChannelID string
	RelayUsername    string
	RelayAvatarURL   string
}

type Dependencies struct {
	Store      ports.RecordStore
	UnitOfWork ports.UnitOfWork
	Cache      ports.Cache
	Aggregator *Aggregator
	Sink       ports.NoticeSink
	// Relay is optional; nil disables relaying.
	Relay   ports.Relay
	Metrics ports.Metrics
}

type Service struct {
	store      ports.RecordStore
	uow        ports.UnitOfWork
	cache      ports.Cache
	aggregator *Aggregator
	sink       ports.NoticeSink
	relay      ports.Relay
	metrics    ports.Metrics
	cfg        Config
	ignored    atomic.Pointer[audit.RoleSet]
	now        func() time.Time
}

// NewService wires the capture, moderation and restore paths.
func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if deps.UnitOfWork == nil {
		deps.UnitOfWork = ports.DirectUnitOfWork{}
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}
	s := &Service{
		store:      deps.Store,
		uow:        deps.UnitOfWork,
		cache:      deps.Cache,
		aggregator: deps.Aggregator,
		sink:       deps.Sink,
		relay:      deps.Relay,
		metrics:    deps.Metrics,
		cfg:        cfg,
		now:        time.Now,
	}
	s.SetIgnoredRoles(cfg.IgnoredRoleIDs)
	return s
}

// SetIgnoredRoles swaps the ignored role set used by later captures.
func (s *Service) SetIgnoredRoles(roles audit.RoleSet) {
	if roles == nil {
		roles = audit.NewRoleSet()
	}
	s.ignored.Store(&roles)
}

func (s *Service) IgnoredRoles() audit.RoleSet {
	if p := s.ignored.Load(); p != nil {
		return *p
	}
	return audit.NewRoleSet()
}

// DeletionEvent is one "content was removed" event from the gateway.
type DeletionEvent struct {
	EventID       string   `json:"event_id"`
	Content       string   `json:"content"`
	AuthorDisplay string   `json:"author_display"`
	AuthorRoleIDs []string `json:"author_role_ids"`
	ChannelName   string   `json:"channel_name"`
	ChannelID     string   `json:"channel_id"`
	GuildPresent  bool     `json:"guild_present"`
}

type CaptureResult struct {
	Recorded bool   `json:"recorded"`
	RecordID string `json:"record_id,omitempty"`
	Reason   string `json:"reason"`
}

// Capture runs one deletion event through the role filter and persists it.
// Storage failures drop the event and are returned for the caller to log.
func (s *Service) Capture(ctx context.Context, event DeletionEvent) (CaptureResult, error) {
	if ctx == nil {
		return CaptureResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return CaptureResult{}, errs.Wrap(err, "check context")
	}
	if s.store == nil {
		return CaptureResult{}, errors.New("record store is required")
	}
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.capture"),
		slog.String("event_id", event.EventID),
		slog.String("channel_id", event.ChannelID),
	)

	if !audit.ShouldRecordEvent(event.GuildPresent, audit.NewRoleSet(event.AuthorRoleIDs...), s.IgnoredRoles()) {
		s.metrics.CaptureResult(ReasonIgnoredRole)
		logging.Info(ctx, "deletion skipped for ignored role", slog.String("author", event.AuthorDisplay))
		return CaptureResult{Reason: ReasonIgnoredRole}, nil
	}
	if strings.TrimSpace(event.Content) == "" {
		s.metrics.CaptureResult(ReasonEmptyContent)
		return CaptureResult{Reason: ReasonEmptyContent}, nil
	}

	author := strings.TrimSpace(event.AuthorDisplay)
	if author == "" {
		author = audit.UnknownAuthor
	}
	record := audit.AuditRecord{
		EventID:     strings.TrimSpace(event.EventID),
		Content:     event.Content,
		Author:      author,
		ChannelName: event.ChannelName,
		ChannelID:   event.ChannelID,
		Timestamp:   audit.NormalizeTimestamp(s.now()),
	}
	if err := record.Validate(); err != nil {
		s.metrics.CaptureResult("invalid")
		return CaptureResult{}, err
	}

	out := CaptureResult{}
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		key := captureKeyPrefix + record.EventID
		if record.EventID != "" && s.cache != nil {
			existing, found, err := s.cache.Get(txCtx, key)
			if err != nil {
				return errs.Wrap(err, "check capture key")
			}
			if found {
				out.RecordID = existing
				out.Reason = ReasonDuplicateEvent
				return nil
			}
		}

		id, err := s.store.Insert(txCtx, record)
		if err != nil {
			return err
		}
		record.ID = id

		if record.EventID != "" && s.cache != nil {
			if err := s.cache.Set(txCtx, key, id, s.cfg.Retention); err != nil {
				return errs.Wrap(err, "remember capture key")
			}
		}
		out.Recorded = true
		out.RecordID = id
		out.Reason = ReasonRecorded
		return nil
	}); err != nil {
		s.metrics.CaptureResult("storage_error")
		logging.Error(ctx, "capture dropped", slog.Any("err", errs.Loggable(err)))
		return CaptureResult{}, errs.Wrap(err, "store captured deletion")
	}

	s.metrics.CaptureResult(out.Reason)
	if !out.Recorded {
		logging.Info(ctx, "duplicate deletion event ignored", slog.String("record_id", out.RecordID))
		return out, nil
	}

	logging.Info(ctx, "deletion recorded", slog.String("record_id", record.ID))
	s.display(ctx, record.Entry())
	return out, nil
}

func (s *Service) display(ctx context.Context, entry audit.BufferEntry) {
	if s.cfg.Immediate || s.aggregator == nil {
		if s.sink == nil {
			return
		}
		if err := s.sink.PublishBatch(context.WithoutCancel(ctx), []audit.BufferEntry{entry}); err != nil {
			logging.Warn(ctx, "publish capture notice failed", slog.Any("err", errs.Loggable(err)))
			return
		}
		s.metrics.Flushed(1)
		return
	}
	s.metrics.Pending(s.aggregator.Append(entry))
}

type ModerationResult struct {
	Recorded   bool   `json:"recorded"`
	RecordID   string `json:"record_id,omitempty"`
	DecisionID string `json:"decision_id,omitempty"`
	Reason     string `json:"reason"`
	Relayed    bool   `json:"relayed"`
}

// IngestModeration normalizes and stores an AutoMod notification from the
// watched channel, publishes its notice and relays it. Relay failures are
// logged and never undo the insert.
func (s *Service) IngestModeration(ctx context.Context, n audit.ModerationNotification) (ModerationResult, error) {
	if ctx == nil {
		return ModerationResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ModerationResult{}, errs.Wrap(err, "check context")
	}
	if !s.cfg.AutoModEnabled {
		return ModerationResult{}, ErrModerationDisabled
	}
	if s.store == nil {
		return ModerationResult{}, errors.New("record store is required")
	}
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.capture.moderation"),
		slog.String("channel_id", n.ChannelID),
	)

	if strings.TrimSpace(n.ChannelID) != s.cfg.AutoModChannelID {
		s.metrics.ModerationResult(ReasonChannelNotWatched)
		return ModerationResult{Reason: ReasonChannelNotWatched}, nil
	}

	record, err := audit.Normalize(n, s.now())
	if err != nil {
		s.metrics.ModerationResult("normalization_error")
		logging.Warn(ctx, "moderation notification dropped", slog.Any("err", errs.Loggable(err)))
		return ModerationResult{}, err
	}
	if err := record.Validate(); err != nil {
		s.metrics.ModerationResult("invalid")
		return ModerationResult{}, err
	}
	ctx = logging.WithAttrs(ctx, slog.String("decision_id", record.DecisionID))

	id, err := s.store.Insert(ctx, record)
	if err != nil {
		if errors.Is(err, ports.ErrDuplicateDecisionID) {
			s.metrics.ModerationResult(ReasonDuplicateDecision)
			out := ModerationResult{DecisionID: record.DecisionID, Reason: ReasonDuplicateDecision}
			if existing, findErr := s.store.FindByDecisionID(ctx, record.DecisionID); findErr == nil {
				out.RecordID = existing.ID
			}
			logging.Info(ctx, "duplicate moderation notification ignored")
			return out, nil
		}
		s.metrics.ModerationResult("storage_error")
		logging.Error(ctx, "moderation notification dropped", slog.Any("err", errs.Loggable(err)))
		return ModerationResult{}, errs.Wrap(err, "store moderation record")
	}
	record.ID = id
	s.metrics.ModerationResult(ReasonRecorded)
	logging.Info(ctx, "moderation notification recorded", slog.String("record_id", id))

	out := ModerationResult{
		Recorded:   true,
		RecordID:   id,
		DecisionID: record.DecisionID,
		Reason:     ReasonRecorded,
	}

	bgCtx := context.WithoutCancel(ctx)
	if s.sink != nil {
		if err := s.sink.PublishRecord(bgCtx, record); err != nil {
			logging.Warn(ctx, "publish moderation notice failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	if s.relay != nil {
		if err := s.relay.Relay(bgCtx, s.relayMessage(record)); err != nil {
			s.metrics.RelayResult("failed")
			logging.Warn(ctx, "relay delivery failed", slog.Any("err", errs.Loggable(err)))
		} else {
			s.metrics.RelayResult("ok")
			out.Relayed = true
		}
	}
	return out, nil
}

func (s *Service) relayMessage(record audit.AuditRecord) ports.RelayMessage {
	var b strings.Builder
	b.WriteString("AutoMod removed a message from ")
	b.WriteString(record.Author)
	b.WriteString("\n")
	b.WriteString(record.Content)
	b.WriteString("\nDecision ID: ")
	b.WriteString(record.DecisionID)

	msg := ports.RelayMessage{
		Username: s.cfg.RelayUsername,
		Content:  b.String(),
	}
	if avatar := strings.TrimSpace(s.cfg.RelayAvatarURL); avatar != "" {
		msg.AvatarURL = &avatar
	}
	return msg
}

// Restore resolves a reference as a record id first, then as a decision id.
// Evicted and never-existing records are both ErrNotFound.
func (s *Service) Restore(ctx context.Context, reference string) (audit.AuditRecord, error) {
	if ctx == nil {
		return audit.AuditRecord{}, errors.New("context is required")
	}
	if s.store == nil {
		return audit.AuditRecord{}, errors.New("record store is required")
	}

	ref, err := audit.ParseReference(reference)
	if err != nil {
		s.metrics.RestoreResult("invalid_reference")
		return audit.AuditRecord{}, err
	}

	if ref.RecordID != "" {
		record, err := s.store.FindByID(ctx, ref.RecordID)
		switch {
		case err == nil:
			s.metrics.RestoreResult("found")
			return record, nil
		case !errors.Is(err, ports.ErrRecordNotFound):
			s.metrics.RestoreResult("error")
			return audit.AuditRecord{}, errs.Wrap(err, "find record by id")
		}
	}

	if ref.DecisionID != "" {
		record, err := s.store.FindByDecisionID(ctx, ref.DecisionID)
		switch {
		case err == nil:
			s.metrics.RestoreResult("found")
			return record, nil
		case !errors.Is(err, ports.ErrRecordNotFound):
			s.metrics.RestoreResult("error")
			return audit.AuditRecord{}, errs.Wrap(err, "find record by decision id")
		}
	}

	s.metrics.RestoreResult("not_found")
	return audit.AuditRecord{}, errs.Wrapf(audit.ErrNotFound, "reference %q", strings.TrimSpace(reference))
}
