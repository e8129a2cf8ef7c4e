// Package audit writes the append-only log of Plaid API calls and webhook
// deliveries.
package audit

import (
	"context"
	"encoding/json"

	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const redacted = "[REDACTED]"

// Argument keys whose values are never written to the log.
var secretKeys = map[string]bool{
	"access_token": true,
	"public_token": true,
	"secret":       true,
}

// Call identifies one Plaid API call.
type Call struct {
	Name      string // API method, e.g. transactionsSync
	ItemID    string // Plaid item_id
	UserID    string
	Arguments map[string]any
}

// Webhook is the outcome of one webhook dispatch.
type Webhook struct {
	Name    string // TYPE.CODE
	ItemID  string
	UserID  string
	Payload any
	Status  models.WebhookStatus
	Detail  string
}

// Recorder writes audit events. Writes are independent inserts, failures
// are logged and never returned to the caller.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Request records a call before it is sent.
func (r *Recorder) Request(ctx context.Context, call Call) {
	r.write(ctx, &models.APIEvent{
		Kind:      models.EventKindAPI,
		Phase:     models.EventPhaseRequest,
		Name:      call.Name,
		ItemID:    call.ItemID,
		UserID:    call.UserID,
		Arguments: encode(redact(call.Arguments)),
	})
}

// Response records the result of a call. requestID is Plaid's request id
// of a successful response, for errors it is taken from the error.
func (r *Recorder) Response(ctx context.Context, call Call, requestID string, err error) {
	event := &models.APIEvent{
		Kind:      models.EventKindAPI,
		Phase:     models.EventPhaseResponse,
		Name:      call.Name,
		ItemID:    call.ItemID,
		UserID:    call.UserID,
		RequestID: requestID,
	}

	if err != nil {
		errorType, errorCode, errRequestID := plaid.ErrorDetails(err)
		event.ErrorType = errorType
		event.ErrorCode = errorCode
		event.Detail = err.Error()
		if event.RequestID == "" {
			event.RequestID = errRequestID
		}
	}

	r.write(ctx, event)
}

// Webhook records a webhook delivery.
func (r *Recorder) Webhook(ctx context.Context, webhook Webhook) {
	r.write(ctx, &models.APIEvent{
		Kind:      models.EventKindWebhook,
		Name:      webhook.Name,
		ItemID:    webhook.ItemID,
		UserID:    webhook.UserID,
		Arguments: encode(webhook.Payload),
		Status:    webhook.Status,
		Detail:    webhook.Detail,
	})
}

// Events returns the most recent events for a Plaid item.
func (r *Recorder) Events(ctx context.Context, itemID string, limit int) ([]models.APIEvent, error) {
	if limit < 1 {
		limit = -1
	}

	var events []models.APIEvent
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error

	return events, err
}

func (r *Recorder) write(ctx context.Context, event *models.APIEvent) {
	// The audit trail outlives the request that produced it
	err := r.db.WithContext(context.WithoutCancel(ctx)).Create(event).Error
	if err != nil {
		log.Error().Err(err).Str("kind", string(event.Kind)).Str("name", event.Name).Str("item", event.ItemID).Msg("failed to write audit event")
	}
}

func redact(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		if secretKeys[k] {
			out[k] = redacted
			continue
		}

		if nested, ok := v.(map[string]any); ok {
			out[k] = redact(nested)
			continue
		}

		out[k] = v
	}
	return out
}

func encode(v any) string {
	if v == nil {
		return ""
	}

	if m, ok := v.(map[string]any); ok && m == nil {
		return ""
	}

	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("could not encode audit arguments")
		return ""
	}
	return string(data)
}
