package webhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/morsecodescott/budget-tracker-app-sub000/internal/audit"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/ledger"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/notify"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/syncer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds a single asynchronous dispatch.
const DefaultTimeout = 5 * time.Minute

var tracer = otel.Tracer("budget-tracker/webhook")

// Syncer runs a transaction sync for an item. WithItemLock runs fn while
// no sync for the item can run.
type Syncer interface {
	Sync(ctx context.Context, externalItemID string) (syncer.Result, error)
	WithItemLock(ctx context.Context, externalItemID string, fn func() error) error
}

// Publisher delivers sync results to the user.
type Publisher interface {
	Publish(ctx context.Context, userID string, update notify.Update)
}

// Dispatcher routes webhooks to their handlers. Every dispatch writes
// exactly one webhook event to the audit log.
type Dispatcher struct {
	store     *ledger.Store
	syncer    Syncer
	publisher Publisher
	recorder  *audit.Recorder
	timeout   time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(store *ledger.Store, syncer Syncer, publisher Publisher, recorder *audit.Recorder, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Dispatcher{
		store:     store,
		syncer:    syncer,
		publisher: publisher,
		recorder:  recorder,
		timeout:   timeout,
	}
}

// outcome is what a handler reports back for the audit log.
type outcome struct {
	status models.WebhookStatus
	detail string
	userID string
}

// DispatchAsync dispatches the payload in the background. The dispatch is
// not bound to the request that delivered the webhook.
func (d *Dispatcher) DispatchAsync(payload Payload) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		// Errors are logged and recorded by Dispatch
		_ = d.Dispatch(ctx, payload)
	}()
}

// SyncAsync syncs the item in the background and publishes the result,
// like a SYNC_UPDATES_AVAILABLE webhook would. No webhook is recorded.
func (d *Dispatcher) SyncAsync(externalItemID string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if _, err := d.sync(ctx, externalItemID); err != nil {
			log.Error().Err(err).Str("item", externalItemID).Msg("background sync failed")
		}
	}()
}

// Wait blocks until all asynchronous dispatches finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch validates and handles the payload. It returns the validation or
// handler error, which is also logged and recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) (err error) {
	ctx, span := tracer.Start(ctx, "webhook.dispatch", trace.WithAttributes(
		attribute.String("webhook.type", string(payload.WebhookType)),
		attribute.String("webhook.code", string(payload.WebhookCode)),
		attribute.String("item.id", payload.ItemID),
	))
	defer span.End()

	logger := log.With().Str("webhook", payload.Name()).Str("item", payload.ItemID).Logger()

	var result outcome
	if err = payload.Validate(); err == nil {
		result, err = d.route(ctx, logger, payload)
	}

	if err != nil {
		logger.Error().Err(err).Msg("webhook dispatch failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		result.status = models.WebhookError
		result.detail = err.Error()
	}

	d.recorder.Webhook(ctx, audit.Webhook{
		Name:    payload.Name(),
		ItemID:  payload.ItemID,
		UserID:  result.userID,
		Payload: payload,
		Status:  result.status,
		Detail:  result.detail,
	})

	webhooksTotal.WithLabelValues(string(payload.WebhookType), string(payload.WebhookCode), string(result.status)).Inc()
	return err
}

func (d *Dispatcher) route(ctx context.Context, logger zerolog.Logger, payload Payload) (outcome, error) {
	switch payload.WebhookType {
	case TypeTransactions:
		return d.transactions(ctx, logger, payload)
	case TypeItem:
		return d.item(ctx, logger, payload)
	default:
		logger.Warn().Msg("unhandled webhook type")
		return outcome{status: models.WebhookUnhandled}, nil
	}
}

func (d *Dispatcher) transactions(ctx context.Context, logger zerolog.Logger, payload Payload) (outcome, error) {
	switch payload.WebhookCode {
	case CodeSyncUpdatesAvailable:
		return d.sync(ctx, payload.ItemID)

	// Superseded by SYNC_UPDATES_AVAILABLE
	case CodeDefaultUpdate, CodeInitialUpdate, CodeHistoricalUpdate:
		logger.Debug().Msg("ignoring legacy transactions webhook")
		return outcome{status: models.WebhookProcessed}, nil

	default:
		logger.Warn().Msg("unhandled transactions webhook")
		return outcome{status: models.WebhookUnhandled}, nil
	}
}

// sync runs a sync and publishes the changes to the owner of the item.
// An aborted sync is an error and nothing is published.
func (d *Dispatcher) sync(ctx context.Context, externalItemID string) (outcome, error) {
	result, err := d.syncer.Sync(ctx, externalItemID)
	if err != nil {
		return outcome{userID: result.UserID}, err
	}

	if result.Aborted {
		return outcome{userID: result.UserID}, fmt.Errorf("sync aborted: %w", result.FetchErr)
	}

	d.publisher.Publish(ctx, result.UserID, notify.Update{
		ItemID:        result.ItemID,
		AddedCount:    result.Added,
		ModifiedCount: result.Modified,
		RemovedCount:  result.Removed,
	})

	return outcome{
		status: models.WebhookProcessed,
		detail: fmt.Sprintf("added=%d modified=%d removed=%d", result.Added, result.Modified, result.Removed),
		userID: result.UserID,
	}, nil
}

func (d *Dispatcher) item(ctx context.Context, logger zerolog.Logger, payload Payload) (outcome, error) {
	item, err := d.store.ItemByExternalID(ctx, payload.ItemID)
	if err != nil {
		// The item may already be gone when Plaid reports its removal
		if payload.WebhookCode == CodeItemRemoved && errors.Is(err, models.ErrResourceNotFound) {
			return outcome{status: models.WebhookProcessed, detail: "item already removed"}, nil
		}
		return outcome{}, err
	}

	result := outcome{userID: item.UserID}

	switch payload.WebhookCode {
	case CodeError:
		if payload.Error == nil || payload.Error.ErrorCode != plaid.CodeItemLoginRequired {
			code := "unknown"
			if payload.Error != nil {
				code = payload.Error.ErrorCode
			}
			logger.Warn().Str("error_code", code).Msg("unhandled item error")
			result.status = models.WebhookUnhandled
			result.detail = code
			return result, nil
		}

		if err := d.store.SetItemStatus(ctx, item.ExternalID, models.ItemStatusBad); err != nil {
			return result, err
		}
		result.status = models.WebhookProcessed
		result.detail = plaid.CodeItemLoginRequired

	case CodePendingExpiration, CodePendingDisconnect:
		if err := d.store.SetItemStatus(ctx, item.ExternalID, models.ItemStatusBad); err != nil {
			return result, err
		}
		logger.Info().Str("user", item.UserID).Msg("user must re-authenticate the item")
		result.status = models.WebhookProcessed

	case CodeItemRemoved:
		err := d.syncer.WithItemLock(ctx, item.ExternalID, func() error {
			return d.store.DeleteItem(ctx, item.ExternalID)
		})
		if err != nil {
			return result, err
		}
		logger.Info().Str("user", item.UserID).Msg("item removed")
		result.status = models.WebhookProcessed

	case CodeWebhookUpdateAcknowledged:
		result.status = models.WebhookReceived

	// Acknowledged, handling them is left for later
	case CodeLoginRepaired, CodeNewAccountsAvailable, CodeUserPermissionRevoked, CodeUserAccountRevoked:
		logger.Info().Msg("unhandled item webhook")
		result.status = models.WebhookUnhandled

	default:
		logger.Warn().Msg("unhandled item webhook")
		result.status = models.WebhookUnhandled
	}

	return result, nil
}
