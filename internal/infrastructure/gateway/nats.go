package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
	"auditcache/internal/usecase/capture"
)

const (
	DefaultDeletionSubject = "auditcache.events.deletion"
	DefaultAutoModSubject  = "auditcache.events.automod"
)

// EventHandler is the capture side the subscriber feeds.
type EventHandler interface {
	Capture(ctx context.Context, event capture.DeletionEvent) (capture.CaptureResult, error)
	IngestModeration(ctx context.Context, n audit.ModerationNotification) (capture.ModerationResult, error)
}

type Config struct {
	URL             string
	DeletionSubject string
	AutoModSubject  string
	// AutoModEnabled controls whether the automod subject is subscribed.
	AutoModEnabled bool
}

// Reply is sent back when a message carries a reply subject.
type Reply struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Subscriber consumes gateway events from NATS. Each message is handled on
// the subscription goroutine; a failed event is logged and skipped.
type Subscriber struct {
	handler EventHandler
	cfg     Config

	mu     sync.Mutex
	conn   *nats.Conn
	subs   []*nats.Subscription
	closed chan struct{}
}

const drainTimeout = 30 * time.Second

func NewSubscriber(handler EventHandler, cfg Config) *Subscriber {
	if strings.TrimSpace(cfg.DeletionSubject) == "" {
		cfg.DeletionSubject = DefaultDeletionSubject
	}
	if strings.TrimSpace(cfg.AutoModSubject) == "" {
		cfg.AutoModSubject = DefaultAutoModSubject
	}
	return &Subscriber{handler: handler, cfg: cfg}
}

// Start connects and subscribes. The context carries logging attributes into
// every handled event; its cancellation does not abort events still being
// drained by Stop.
func (s *Subscriber) Start(ctx context.Context) error {
	if s.handler == nil {
		return errors.New("event handler is required")
	}
	url := strings.TrimSpace(s.cfg.URL)
	if url == "" {
		return errors.New("nats url is required")
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "infrastructure.gateway.nats"))

	closed := make(chan struct{})
	conn, err := nats.Connect(url,
		nats.Name("auditcache"),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(*nats.Conn) {
			close(closed)
		}),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(ctx, "nats disconnected", slog.Any("err", errs.Loggable(err)))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info(ctx, "nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return errs.Wrap(err, "connect nats")
	}

	subs := make([]*nats.Subscription, 0, 2)
	sub, err := conn.Subscribe(s.cfg.DeletionSubject, func(msg *nats.Msg) {
		s.HandleDeletion(ctx, msg)
	})
	if err != nil {
		conn.Close()
		return errs.Wrapf(err, "subscribe %s", s.cfg.DeletionSubject)
	}
	subs = append(subs, sub)

	if s.cfg.AutoModEnabled {
		sub, err = conn.Subscribe(s.cfg.AutoModSubject, func(msg *nats.Msg) {
			s.HandleAutoMod(ctx, msg)
		})
		if err != nil {
			conn.Close()
			return errs.Wrapf(err, "subscribe %s", s.cfg.AutoModSubject)
		}
		subs = append(subs, sub)
	}

	s.mu.Lock()
	s.conn = conn
	s.subs = subs
	s.closed = closed
	s.mu.Unlock()

	logging.Info(ctx, "nats subscriber started",
		slog.String("deletion_subject", s.cfg.DeletionSubject),
		slog.Bool("automod", s.cfg.AutoModEnabled),
	)
	return nil
}

// Stop drains the connection and waits until every in-flight message has
// been handled and the connection is closed.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.conn = nil
	s.subs = nil
	s.closed = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return errs.Wrap(err, "drain nats")
	}
	select {
	case <-closed:
		return nil
	case <-time.After(drainTimeout + 5*time.Second):
		conn.Close()
		return errors.New("nats drain did not finish")
	}
}

// HandleDeletion decodes one deletion event and captures it. A cancelled
// parent does not drop the event.
func (s *Subscriber) HandleDeletion(ctx context.Context, msg *nats.Msg) {
	ctx = context.WithoutCancel(ctx)
	var event capture.DeletionEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logging.Warn(ctx, "invalid deletion event", slog.String("subject", msg.Subject), slog.Any("err", errs.Loggable(err)))
		s.reply(ctx, msg, nil, errs.Wrap(err, "decode deletion event"))
		return
	}
	result, err := s.handler.Capture(ctx, event)
	s.reply(ctx, msg, result, err)
}

func (s *Subscriber) HandleAutoMod(ctx context.Context, msg *nats.Msg) {
	ctx = context.WithoutCancel(ctx)
	var n audit.ModerationNotification
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		logging.Warn(ctx, "invalid automod notification", slog.String("subject", msg.Subject), slog.Any("err", errs.Loggable(err)))
		s.reply(ctx, msg, nil, errs.Wrap(err, "decode automod notification"))
		return
	}
	result, err := s.handler.IngestModeration(ctx, n)
	s.reply(ctx, msg, result, err)
}

func (s *Subscriber) reply(ctx context.Context, msg *nats.Msg, result any, err error) {
	if msg.Reply == "" {
		return
	}
	out := Reply{OK: err == nil, Result: result}
	if err != nil {
		out.Result = nil
		out.Error = err.Error()
	}
	payload, marshalErr := json.Marshal(out)
	if marshalErr != nil {
		logging.Warn(ctx, "marshal nats reply failed", slog.Any("err", errs.Loggable(marshalErr)))
		return
	}
	if respondErr := msg.Respond(payload); respondErr != nil {
		logging.Warn(ctx, "nats reply failed", slog.Any("err", errs.Loggable(respondErr)))
	}
}
