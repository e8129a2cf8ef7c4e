// Package controllers implements the HTTP API.
package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/audit"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/ledger"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/notify"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/syncer"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/webhook"
)

// HeaderUserID identifies the user a request is made for. Authentication
// happens in front of this service.
const HeaderUserID = "X-User-ID"

const contextUserID = "userID"

// Controller holds the dependencies of all handlers.
type Controller struct {
	Store      *ledger.Store
	Plaid      plaid.Client
	Engine     *syncer.Engine
	Dispatcher *webhook.Dispatcher
	Verifier   *webhook.Verifier // nil disables webhook verification
	Recorder   *audit.Recorder
	Hub        *notify.Hub
	Notifier   *notify.Service
	Link       LinkConfig
}

// LinkConfig configures the Link sessions created for users.
type LinkConfig struct {
	ClientName   string
	Language     string
	Products     []string
	CountryCodes []string
	WebhookURL   string
}

type httpError struct {
	Error string `json:"error" example:"there is no item matching your query"`
}

// Pagination describes the slice of a list that was returned.
type Pagination struct {
	Count  int   `json:"count" example:"25"`  // The amount of records returned in this response
	Offset uint  `json:"offset" example:"50"` // The offset for the first record returned
	Limit  int   `json:"limit" example:"25"`  // The maximum amount of resources to return for this request
	Total  int64 `json:"total" example:"827"` // The total number of resources matching the query
}

var (
	errUserIDMissing = fmt.Errorf("the %s header must be set", HeaderUserID)
	errProvider      = errors.New("the request to Plaid failed")
)

// status returns the appropriate status for an error
func status(err error) int {
	switch {
	case errors.Is(err, models.ErrGeneral):
		return http.StatusInternalServerError
	case errors.Is(err, models.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, syncer.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, errProvider):
		return http.StatusBadGateway
	case errors.Is(err, errUserIDMissing), errors.Is(err, webhook.ErrVerification):
		return http.StatusUnauthorized
	}

	return http.StatusBadRequest
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(status(err), httpError{Error: err.Error()})
}

// RequireUser rejects requests that do not name a user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			abort(c, errUserIDMissing)
			return
		}

		c.Set(contextUserID, userID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(contextUserID)
}

// callPlaid records the call in the audit trail around f. Errors are
// marked as provider errors.
func (co Controller) callPlaid(ctx context.Context, call audit.Call, f func() (requestID string, err error)) error {
	co.Recorder.Request(ctx, call)
	requestID, err := f()
	co.Recorder.Response(ctx, call, requestID, err)

	if err != nil {
		return fmt.Errorf("%w: %w", errProvider, err)
	}
	return nil
}
