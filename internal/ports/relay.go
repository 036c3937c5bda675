package ports

import (
	"context"
	"errors"
)

var ErrDeliveryFailed = errors.New("relay delivery failed")

// RelayMessage is the outbound webhook payload.
type RelayMessage struct {
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
	Content   string  `json:"content"`
}

// Relay forwards a message to the downstream sink, best effort. Failures
// are reported as ErrDeliveryFailed and never retried.
type Relay interface {
	Relay(ctx context.Context, msg RelayMessage) error
}
