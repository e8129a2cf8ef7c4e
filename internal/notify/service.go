package notify

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Pusher sends data messages to devices.
type Pusher interface {
	SendDataOnly(ctx context.Context, tokens []string, data map[string]string) error
}

// TokenSource returns the push tokens of a user.
type TokenSource interface {
	DeviceTokens(ctx context.Context, userID string) ([]string, error)
}

// Service fans an update out to the live sessions of a user and, if push
// is configured, to their devices. Delivery is best effort.
type Service struct {
	hub    *Hub
	pusher Pusher
	tokens TokenSource
}

// NewService creates a Service. pusher and tokens may be nil to disable
// push delivery.
func NewService(hub *Hub, pusher Pusher, tokens TokenSource) *Service {
	return &Service{hub: hub, pusher: pusher, tokens: tokens}
}

// Publish delivers the update. It never fails, problems are logged.
func (s *Service) Publish(ctx context.Context, userID string, update Update) {
	delivered := s.hub.Publish(userID, Event{Name: EventTransactionsUpdate, Data: update})
	log.Debug().Str("user", userID).Str("item", update.ItemID).Int("sessions", delivered).Msg("published transactions update")

	if s.pusher == nil || s.tokens == nil {
		return
	}

	tokens, err := s.tokens.DeviceTokens(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("could not load device tokens")
		return
	}

	if len(tokens) == 0 {
		return
	}

	err = s.pusher.SendDataOnly(ctx, tokens, map[string]string{
		"type":          EventTransactionsUpdate,
		"itemId":        update.ItemID,
		"addedCount":    strconv.Itoa(update.AddedCount),
		"modifiedCount": strconv.Itoa(update.ModifiedCount),
		"removedCount":  strconv.Itoa(update.RemovedCount),
	})
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("push delivery failed")
	}
}
