package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

const fcmBatchLimit = 500

// TokenDeactivator marks push tokens that FCM rejected as invalid.
type TokenDeactivator func(ctx context.Context, tokens []string) error

// multicaster is the part of the FCM client the pusher uses.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMPusher sends data-only messages through Firebase Cloud Messaging.
type FCMPusher struct {
	client      multicaster
	deactivator TokenDeactivator
}

// NewFCMPusher initializes a Firebase app from the credentials file.
// deactivator may be nil.
func NewFCMPusher(ctx context.Context, credentialsFile string, deactivator TokenDeactivator) (*FCMPusher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return &FCMPusher{client: client, deactivator: deactivator}, nil
}

// SendDataOnly sends data without an OS notification to all tokens, in
// batches of the FCM limit. Clients use it as a silent reload trigger.
func (p *FCMPusher) SendDataOnly(ctx context.Context, tokens []string, data map[string]string) error {
	var success, failure int
	var invalid []string

	for _, batch := range chunk(tokens, fcmBatchLimit) {
		resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: batch,
			Data:   data,
		})
		if err != nil {
			return fmt.Errorf("failed to send FCM data-only multicast: %w", err)
		}

		success += resp.SuccessCount
		failure += resp.FailureCount

		for i, r := range resp.Responses {
			if r.Error == nil {
				continue
			}

			if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
				invalid = append(invalid, batch[i])
				continue
			}
			log.Warn().Err(r.Error).Int("index", i).Msg("FCM send error")
		}
	}

	if len(invalid) > 0 && p.deactivator != nil {
		log.Info().Int("count", len(invalid)).Msg("deactivating invalid FCM tokens")
		if err := p.deactivator(ctx, invalid); err != nil {
			log.Error().Err(err).Msg("failed to deactivate FCM tokens")
		}
	}

	log.Debug().Int("success", success).Int("failure", failure).Msg("FCM data-only multicast sent")
	return nil
}

func chunk(tokens []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		chunks = append(chunks, tokens[i:min(i+size, len(tokens))])
	}
	return chunks
}
