package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventKind distinguishes calls to Plaid from webhooks received from Plaid.
type EventKind string

const (
	EventKindAPI     EventKind = "api"
	EventKindWebhook EventKind = "webhook"
)

// EventPhase is set for API events. Every call is recorded once before
// it is sent and once after the response arrived.
type EventPhase string

const (
	EventPhaseRequest  EventPhase = "request"
	EventPhaseResponse EventPhase = "response"
)

// WebhookStatus is the outcome of a webhook dispatch.
type WebhookStatus string

const (
	WebhookReceived  WebhookStatus = "RECEIVED"
	WebhookProcessed WebhookStatus = "PROCESSED"
	WebhookError     WebhookStatus = "ERROR"
	WebhookUnhandled WebhookStatus = "UNHANDLED"
)

// APIEvent is an append-only audit record of one Plaid API call phase or
// one webhook delivery.
type APIEvent struct {
	ID        uuid.UUID     `json:"id" gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time     `json:"createdAt" gorm:"index"`
	Kind      EventKind     `json:"kind" gorm:"index"`
	Phase     EventPhase    `json:"phase,omitempty"`
	Name      string        `json:"name" example:"transactionsSync"` // API method or TYPE.CODE for webhooks
	ItemID    string        `json:"itemId" gorm:"index"`             // Plaid item_id
	UserID    string        `json:"userId"`
	Arguments string        `json:"arguments"` // JSON encoded, secrets redacted
	RequestID string        `json:"requestId"`
	ErrorCode string        `json:"errorCode"`
	ErrorType string        `json:"errorType"`
	Status    WebhookStatus `json:"status,omitempty"`
	Detail    string        `json:"detail"`
}

func (e *APIEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
