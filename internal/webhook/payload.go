// Package webhook validates and routes webhooks sent by Plaid.
package webhook

import (
	"errors"
	"fmt"

	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

// Type is the webhook_type of a Plaid webhook.
type Type string

const (
	TypeTransactions Type = "TRANSACTIONS"
	TypeItem         Type = "ITEM"
)

// Code is the webhook_code of a Plaid webhook.
type Code string

// Codes for TypeTransactions.
const (
	CodeSyncUpdatesAvailable Code = "SYNC_UPDATES_AVAILABLE"
	CodeDefaultUpdate        Code = "DEFAULT_UPDATE"
	CodeInitialUpdate        Code = "INITIAL_UPDATE"
	CodeHistoricalUpdate     Code = "HISTORICAL_UPDATE"
	CodeTransactionsRemoved  Code = "TRANSACTIONS_REMOVED"
)

// Codes for TypeItem.
const (
	CodeError                     Code = "ERROR"
	CodePendingExpiration         Code = "PENDING_EXPIRATION"
	CodePendingDisconnect         Code = "PENDING_DISCONNECT"
	CodeItemRemoved               Code = "ITEM_REMOVED"
	CodeWebhookUpdateAcknowledged Code = "WEBHOOK_UPDATE_ACKNOWLEDGED"
	CodeLoginRepaired             Code = "LOGIN_REPAIRED"
	CodeNewAccountsAvailable      Code = "NEW_ACCOUNTS_AVAILABLE"
	CodeUserPermissionRevoked     Code = "USER_PERMISSION_REVOKED"
	CodeUserAccountRevoked        Code = "USER_ACCOUNT_REVOKED"
)

// Payload is the body of a Plaid webhook. Fields not used for routing are
// ignored.
type Payload struct {
	WebhookType     Type         `json:"webhook_type" example:"TRANSACTIONS"`
	WebhookCode     Code         `json:"webhook_code" example:"SYNC_UPDATES_AVAILABLE"`
	ItemID          string       `json:"item_id" example:"wz666MBjYWTp2PDzzggYhM6oWWmBb"`
	Error           *plaid.Error `json:"error,omitempty"`
	NewTransactions int          `json:"new_transactions,omitempty"`
	Environment     string       `json:"environment,omitempty" example:"sandbox"`
}

// Name identifies the webhook in logs and the audit trail.
func (p Payload) Name() string {
	return fmt.Sprintf("%s.%s", p.WebhookType, p.WebhookCode)
}

// Validate checks the fields every webhook needs to be routed.
func (p Payload) Validate() error {
	if p.WebhookCode == "" {
		return fmt.Errorf("%w: webhook_code is required", ErrInvalidPayload)
	}

	if p.ItemID == "" {
		return fmt.Errorf("%w: item_id is required", ErrInvalidPayload)
	}

	return nil
}
