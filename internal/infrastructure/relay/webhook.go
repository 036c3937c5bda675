package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
	"auditcache/internal/ports"
)

// MaxContentRunes is the chat webhook limit for the content field.
const MaxContentRunes = 2000

type Config struct {
	URL     string
	Timeout time.Duration
	// Breaker settings; zero values fall back to defaults.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// WebhookRelay posts messages to a webhook URL. Consecutive failures open
// a circuit breaker so a dead sink is skipped until the cooldown passes.
type WebhookRelay struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

var _ ports.Relay = (*WebhookRelay)(nil)

func NewWebhookRelay(cfg Config) (*WebhookRelay, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("relay url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "relay",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logging.Warn(
				logging.WithAttrs(context.Background(), slog.String("component", "infrastructure.relay")),
				"relay circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &WebhookRelay{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}, nil
}

func (r *WebhookRelay) Relay(ctx context.Context, msg ports.RelayMessage) error {
	msg.Content = truncateRunes(msg.Content, MaxContentRunes)
	body, err := json.Marshal(msg)
	if err != nil {
		return errs.Wrap(err, "marshal relay message")
	}

	_, err = r.breaker.Execute(func() (any, error) {
		return nil, r.post(ctx, body)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ports.ErrDeliveryFailed, err)
	}
	return err
}

func (r *WebhookRelay) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(err, "build relay request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return errs.Mark(err, ports.ErrDeliveryFailed)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ports.ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
