package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/study-assistant/internal/infrastructure/resilience"
)

var classifyPublishError = resilience.Transient(isConnectionLoss, isBadMessage)

func isConnectionLoss(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, nats.ErrDisconnected)
}

// Oversized payloads and bad subjects fail the same way on every broker.
func isBadMessage(err error) bool {
	return errors.Is(err, nats.ErrMaxPayload) || errors.Is(err, nats.ErrBadSubject)
}
